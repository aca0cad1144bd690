// Package normalize canonicalizes raw extracted records into comparable
// domain records: upper-cased ISO currency codes checked against an
// allow-list, dates anchored to UTC midnight, and every amount parsed into
// a fixed-precision decimal.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/ingest"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultCurrencies is the currency allow-list used when none is configured.
var DefaultCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CHF", "CAD", "AUD"}

// Accepted issue-date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"02 Jan 2006",
}

// Normalizer canonicalizes raw extracted fields. It is a pure transform
// and safe for concurrent use.
type Normalizer struct {
	allowed map[string]bool
}

// New creates a Normalizer with the given currency allow-list. An empty
// list falls back to DefaultCurrencies.
func New(allowedCurrencies []string) *Normalizer {
	if len(allowedCurrencies) == 0 {
		allowedCurrencies = DefaultCurrencies
	}
	allowed := make(map[string]bool, len(allowedCurrencies))
	for _, code := range allowedCurrencies {
		allowed[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	return &Normalizer{allowed: allowed}
}

// NormalizeInvoice canonicalizes one raw invoice. It fails with a
// MalformedFieldError when a required field is absent or unparseable; the
// caller excludes such records from the run.
func (n *Normalizer) NormalizeInvoice(raw ingest.RawInvoice) (model.InvoiceRecord, error) {
	var rec model.InvoiceRecord

	id := strings.TrimSpace(raw.InvoiceID)
	if id == "" {
		return rec, common.NewMalformedFieldError("invoice_id", "", "required field is empty")
	}

	currency, err := n.normalizeCurrency(raw.CurrencyCode, "currency_code")
	if err != nil {
		return rec, err
	}

	issueDate, err := parseDate(raw.IssueDate, "issue_date")
	if err != nil {
		return rec, err
	}

	total, err := parseAmount(raw.TotalAmount, "total_amount")
	if err != nil {
		return rec, err
	}

	lines := make([]model.LineItem, 0, len(raw.LineItems))
	for i, rawLine := range raw.LineItems {
		line, lineErr := n.normalizeLineItem(rawLine, i)
		if lineErr != nil {
			return rec, lineErr
		}
		lines = append(lines, line)
	}

	rec = model.InvoiceRecord{
		ID:           id,
		VendorName:   strings.TrimSpace(raw.VendorName),
		IssueDate:    issueDate,
		CurrencyCode: currency,
		POReference:  strings.TrimSpace(raw.POReference),
		LineItems:    lines,
		TotalAmount:  total,
		SourceFile:   raw.SourceFile,
	}
	return rec, nil
}

// NormalizeSupportDoc canonicalizes one raw supporting document.
func (n *Normalizer) NormalizeSupportDoc(raw ingest.RawSupportDoc) (model.SupportDocRecord, error) {
	var rec model.SupportDocRecord

	id := strings.TrimSpace(raw.DocID)
	if id == "" {
		return rec, common.NewMalformedFieldError("doc_id", "", "required field is empty")
	}

	docType, err := parseDocType(raw.DocType)
	if err != nil {
		return rec, err
	}

	currency, err := n.normalizeCurrency(raw.CurrencyCode, "currency_code")
	if err != nil {
		return rec, err
	}

	issueDate, err := parseDate(raw.IssueDate, "issue_date")
	if err != nil {
		return rec, err
	}

	amount, err := parseAmount(raw.Amount, "amount")
	if err != nil {
		return rec, err
	}

	rec = model.SupportDocRecord{
		DocID:        id,
		DocType:      docType,
		POReference:  strings.TrimSpace(raw.POReference),
		VendorName:   strings.TrimSpace(raw.VendorName),
		Amount:       amount,
		CurrencyCode: currency,
		IssueDate:    issueDate,
		SourceFile:   raw.SourceFile,
	}
	return rec, nil
}

func (n *Normalizer) normalizeLineItem(raw ingest.RawLineItem, index int) (model.LineItem, error) {
	var line model.LineItem
	field := func(name string) string { return fmt.Sprintf("line_items[%d].%s", index, name) }

	qty, err := parseAmount(raw.Quantity, field("quantity"))
	if err != nil {
		return line, err
	}
	if qty.IsNegative() {
		return line, common.NewMalformedFieldError(field("quantity"), raw.Quantity, "must not be negative")
	}

	price, err := parseAmount(raw.UnitPrice, field("unit_price"))
	if err != nil {
		return line, err
	}
	if price.IsNegative() {
		return line, common.NewMalformedFieldError(field("unit_price"), raw.UnitPrice, "must not be negative")
	}

	taxRate, err := parseAmount(raw.TaxRate, field("tax_rate"))
	if err != nil {
		return line, err
	}

	lineTotal, err := parseAmount(raw.LineTotal, field("line_total"))
	if err != nil {
		return line, err
	}

	currency := ""
	if strings.TrimSpace(raw.CurrencyCode) != "" {
		currency, err = n.normalizeCurrency(raw.CurrencyCode, field("currency_code"))
		if err != nil {
			return line, err
		}
	}

	line = model.LineItem{
		Description:  strings.TrimSpace(raw.Description),
		Quantity:     qty,
		UnitPrice:    price,
		TaxRate:      taxRate,
		LineTotal:    lineTotal,
		CurrencyCode: currency,
	}
	return line, nil
}

func (n *Normalizer) normalizeCurrency(code, field string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", common.NewMalformedFieldError(field, "", "required field is empty")
	}
	if len(code) != 3 {
		return "", common.NewMalformedFieldError(field, code, "not a three-letter ISO 4217 code")
	}
	if !n.allowed[code] {
		return "", fmt.Errorf("%w: %w: %s", common.ErrMalformedField, common.ErrUnsupportedCurrency, code)
	}
	return code, nil
}

// parseDate parses an extracted date into a canonical UTC-midnight time.
func parseDate(value, field string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, common.NewMalformedFieldError(field, "", "required field is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, common.NewMalformedFieldError(field, value, "unrecognized date format")
}

// parseAmount parses an extracted amount into a decimal. Thousands
// separators and surrounding whitespace are tolerated; binary floats are
// never involved.
func parseAmount(value, field string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if cleaned == "" {
		return decimal.Zero, common.NewMalformedFieldError(field, "", "required field is empty")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, common.NewMalformedFieldError(field, value, "not a decimal number")
	}
	return d, nil
}

func parseDocType(value string) (model.DocType, error) {
	folded := strings.ToUpper(strings.TrimSpace(value))
	folded = strings.NewReplacer(" ", "_", "-", "_").Replace(folded)
	switch folded {
	case "PURCHASE_ORDER", "PURCHASEORDER", "PO":
		return model.DocTypePurchaseOrder, nil
	case "DELIVERY_NOTE", "DELIVERYNOTE":
		return model.DocTypeDeliveryNote, nil
	case "RECEIPT":
		return model.DocTypeReceipt, nil
	}
	return "", common.NewMalformedFieldError("doc_type", value, "unknown document type")
}
