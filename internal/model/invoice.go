// Package model defines the core domain records used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRecord is a single extracted invoice. Records are produced by the
// extraction adapters and are immutable once normalized.
type InvoiceRecord struct {
	IssueDate    time.Time
	ID           string
	VendorName   string // Display form as extracted
	CurrencyCode string // ISO 4217, upper case after normalization
	POReference  string // Empty when the invoice carries no PO
	SourceFile   string // File the record was extracted from
	LineItems    []LineItem
	TotalAmount  decimal.Decimal
}

// IdentityHash creates a stable hash over vendor, amount and date for
// duplicate detection across differently numbered copies of one invoice.
func (r *InvoiceRecord) IdentityHash() string {
	data := fmt.Sprintf("%s:%s:%s",
		r.IssueDate.Format("2006-01-02"),
		r.TotalAmount.StringFixed(2),
		FoldVendor(r.VendorName))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// LineItem is one line of an invoice.
type LineItem struct {
	Description  string
	CurrencyCode string // Optional override; empty inherits the invoice currency
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TaxRate      decimal.Decimal // Fraction in [0,1]
	LineTotal    decimal.Decimal
}

// ExpectedTotal returns quantity x unit price x (1 + tax rate).
func (l *LineItem) ExpectedTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Mul(decimal.NewFromInt(1).Add(l.TaxRate))
}
