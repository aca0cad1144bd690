package match

import (
	"testing"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func invoice(id, vendor, po string, amount string, issued time.Time) model.AnnotatedInvoice {
	total := decimal.RequireFromString(amount)
	return model.AnnotatedInvoice{
		Invoice: model.InvoiceRecord{
			ID:           id,
			VendorName:   vendor,
			POReference:  po,
			TotalAmount:  total,
			IssueDate:    issued,
			CurrencyCode: "USD",
		},
		Total: model.NewNormalizedAmount(total, "USD", "USD", decimal.NewFromInt(1), issued),
	}
}

func doc(id, vendor, po string, amount string, issued time.Time) model.AnnotatedDoc {
	amt := decimal.RequireFromString(amount)
	return model.AnnotatedDoc{
		Doc: model.SupportDocRecord{
			DocID:        id,
			DocType:      model.DocTypePurchaseOrder,
			VendorName:   vendor,
			POReference:  po,
			Amount:       amt,
			IssueDate:    issued,
			CurrencyCode: "USD",
		},
		Amount: model.NewNormalizedAmount(amt, "USD", "USD", decimal.NewFromInt(1), issued),
	}
}

func TestMatchByPOReference(t *testing.T) {
	m := New(DefaultConfig())

	groups := m.Match(
		[]model.AnnotatedInvoice{invoice("INV-1", "Acme", "PO-9", "1000", day(1))},
		[]model.AnnotatedDoc{doc("PO-9", "Acme", "PO-9", "1000", day(1))},
	)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Docs, 1)
	assert.True(t, groups[0].Confidence.Equal(decimal.RequireFromString("1.0")))
	assert.Equal(t, []model.MatchBasis{model.MatchByPOReference}, groups[0].Basis)
}

func TestMatchByVendorAmount(t *testing.T) {
	m := New(DefaultConfig())

	groups := m.Match(
		[]model.AnnotatedInvoice{invoice("INV-1", "Acme Corp", "", "100.00", day(1))},
		[]model.AnnotatedDoc{doc("R-1", "ACME CORP", "", "100.005", day(20))},
	)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Docs, 1)
	assert.True(t, groups[0].Confidence.Equal(decimal.RequireFromString("0.8")))
	assert.Equal(t, []model.MatchBasis{model.MatchByVendorAmount}, groups[0].Basis)
}

func TestMatchByVendorDate(t *testing.T) {
	m := New(DefaultConfig())

	groups := m.Match(
		[]model.AnnotatedInvoice{invoice("INV-1", "Acme", "", "100", day(5))},
		[]model.AnnotatedDoc{doc("R-1", "Acme", "", "250", day(3))},
	)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Docs, 1)
	assert.True(t, groups[0].Confidence.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, []model.MatchBasis{model.MatchByVendorDate}, groups[0].Basis)
}

func TestMatchNoCandidateIsNotAnError(t *testing.T) {
	m := New(DefaultConfig())

	groups := m.Match(
		[]model.AnnotatedInvoice{invoice("INV-2", "Lone Vendor", "", "500", day(1))},
		[]model.AnnotatedDoc{doc("R-1", "Someone Else", "", "500", day(1))},
	)

	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Docs)
	assert.True(t, groups[0].Confidence.IsZero())
}

func TestMatchClaimingPreventsDoubleCounting(t *testing.T) {
	m := New(DefaultConfig())

	groups := m.Match(
		[]model.AnnotatedInvoice{
			invoice("INV-1", "Acme", "PO-9", "1000", day(1)),
			invoice("INV-2", "Acme", "PO-9", "1000", day(2)),
		},
		[]model.AnnotatedDoc{doc("PO-9", "Acme", "PO-9", "1000", day(1))},
	)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Docs, 1, "first invoice claims the document")
	assert.Empty(t, groups[1].Docs, "claimed document leaves the pool")

	seen := make(map[string]int)
	for _, g := range groups {
		for _, d := range g.Docs {
			seen[d.Doc.DocID]++
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "document %s claimed more than once", id)
	}
}

func TestMatchDeterministicTieBreak(t *testing.T) {
	m := New(DefaultConfig())

	invoices := []model.AnnotatedInvoice{invoice("INV-1", "Acme", "", "100", day(5))}
	docs := []model.AnnotatedDoc{
		doc("R-B", "Acme", "", "100", day(4)),
		doc("R-A", "Acme", "", "100", day(4)),
		doc("R-C", "Acme", "", "100", day(3)),
	}

	first := m.Match(invoices, docs)
	for i := 0; i < 10; i++ {
		again := m.Match(invoices, docs)
		assert.Equal(t, first, again, "matching must be deterministic")
	}

	require.Len(t, first[0].Docs, 3)
	// Earliest issue date first, then lexical doc ID.
	assert.Equal(t, "R-C", first[0].Docs[0].Doc.DocID)
	assert.Equal(t, "R-A", first[0].Docs[1].Doc.DocID)
	assert.Equal(t, "R-B", first[0].Docs[2].Doc.DocID)
}

func TestMatchThresholdGatesWeakMatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AcceptThreshold = decimal.RequireFromString("0.6")
	m := New(cfg)

	groups := m.Match(
		[]model.AnnotatedInvoice{invoice("INV-1", "Acme", "", "100", day(5))},
		[]model.AnnotatedDoc{doc("R-1", "Acme", "", "999", day(4))},
	)

	assert.Empty(t, groups[0].Docs, "vendor+date score 0.5 is below threshold 0.6")
	assert.True(t, groups[0].Confidence.IsZero())
}

func TestMatchPriorityOrder(t *testing.T) {
	m := New(DefaultConfig())

	// Doc matches on PO and also on vendor+amount; the PO rule wins.
	groups := m.Match(
		[]model.AnnotatedInvoice{invoice("INV-1", "Acme", "PO-9", "100", day(1))},
		[]model.AnnotatedDoc{doc("D-1", "Acme", "PO-9", "100", day(1))},
	)

	require.Len(t, groups[0].Docs, 1)
	assert.Equal(t, []model.MatchBasis{model.MatchByPOReference}, groups[0].Basis)
	assert.True(t, groups[0].Confidence.Equal(decimal.RequireFromString("1.0")))
}
