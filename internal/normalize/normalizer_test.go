package normalize

import (
	"testing"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/ingest"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInvoice() ingest.RawInvoice {
	return ingest.RawInvoice{
		InvoiceID:    "INV-1",
		VendorName:   "  Acme Corp ",
		IssueDate:    "2024-03-01",
		CurrencyCode: "usd",
		TotalAmount:  "1,234.50",
		POReference:  "PO-9",
		LineItems: []ingest.RawLineItem{
			{Description: "Widgets", Quantity: "2", UnitPrice: "10", TaxRate: "0.1", LineTotal: "22"},
		},
	}
}

func TestNormalizeInvoice(t *testing.T) {
	n := New(nil)

	rec, err := n.NormalizeInvoice(validInvoice())
	require.NoError(t, err)

	assert.Equal(t, "INV-1", rec.ID)
	assert.Equal(t, "Acme Corp", rec.VendorName)
	assert.Equal(t, "USD", rec.CurrencyCode)
	assert.Equal(t, "PO-9", rec.POReference)
	assert.True(t, rec.TotalAmount.Equal(decimal.RequireFromString("1234.50")))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.IssueDate)
	require.Len(t, rec.LineItems, 1)
	assert.True(t, rec.LineItems[0].TaxRate.Equal(decimal.RequireFromString("0.1")))
}

func TestNormalizeInvoiceMalformed(t *testing.T) {
	tests := []struct {
		mutate func(*ingest.RawInvoice)
		name   string
	}{
		{name: "missing invoice id", mutate: func(r *ingest.RawInvoice) { r.InvoiceID = " " }},
		{name: "missing currency", mutate: func(r *ingest.RawInvoice) { r.CurrencyCode = "" }},
		{name: "unsupported currency", mutate: func(r *ingest.RawInvoice) { r.CurrencyCode = "XXX" }},
		{name: "bad currency length", mutate: func(r *ingest.RawInvoice) { r.CurrencyCode = "DOLLARS" }},
		{name: "missing date", mutate: func(r *ingest.RawInvoice) { r.IssueDate = "" }},
		{name: "unparseable date", mutate: func(r *ingest.RawInvoice) { r.IssueDate = "next tuesday" }},
		{name: "missing total", mutate: func(r *ingest.RawInvoice) { r.TotalAmount = "" }},
		{name: "unparseable total", mutate: func(r *ingest.RawInvoice) { r.TotalAmount = "lots" }},
		{name: "negative quantity", mutate: func(r *ingest.RawInvoice) { r.LineItems[0].Quantity = "-1" }},
		{name: "bad line total", mutate: func(r *ingest.RawInvoice) { r.LineItems[0].LineTotal = "??" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validInvoice()
			tt.mutate(&raw)

			_, err := New(nil).NormalizeInvoice(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrMalformedField)
		})
	}
}

func TestNormalizeInvoiceDateLayouts(t *testing.T) {
	n := New(nil)
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, value := range []string{"2024-03-01", "2024-03-01T15:04:05Z", "01/03/2024", "01 Mar 2024"} {
		raw := validInvoice()
		raw.IssueDate = value

		rec, err := n.NormalizeInvoice(raw)
		require.NoError(t, err, "layout %q", value)
		assert.Equal(t, want, rec.IssueDate, "layout %q", value)
	}
}

func TestNormalizeSupportDoc(t *testing.T) {
	n := New(nil)

	rec, err := n.NormalizeSupportDoc(ingest.RawSupportDoc{
		DocID:        "PO-9",
		DocType:      "purchase order",
		POReference:  "PO-9",
		VendorName:   "Acme Corp",
		Amount:       "1000",
		CurrencyCode: "USD",
		IssueDate:    "2024-02-28",
	})
	require.NoError(t, err)

	assert.Equal(t, model.DocTypePurchaseOrder, rec.DocType)
	assert.True(t, rec.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestNormalizeSupportDocTypes(t *testing.T) {
	tests := []struct {
		input   string
		want    model.DocType
		wantErr bool
	}{
		{input: "PurchaseOrder", want: model.DocTypePurchaseOrder},
		{input: "PO", want: model.DocTypePurchaseOrder},
		{input: "delivery-note", want: model.DocTypeDeliveryNote},
		{input: "receipt", want: model.DocTypeReceipt},
		{input: "napkin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDocType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrMalformedField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrencyAllowList(t *testing.T) {
	n := New([]string{"usd", " eur "})

	raw := validInvoice()
	raw.CurrencyCode = "EUR"
	_, err := n.NormalizeInvoice(raw)
	assert.NoError(t, err)

	raw.CurrencyCode = "GBP"
	_, err = n.NormalizeInvoice(raw)
	assert.ErrorIs(t, err, common.ErrUnsupportedCurrency)
}
