package model

import "github.com/shopspring/decimal"

// MatchBasis names the key type a pairing was made on.
type MatchBasis string

// Match basis constants, in rule priority order.
const (
	MatchByPOReference  MatchBasis = "PO_REFERENCE"
	MatchByVendorAmount MatchBasis = "VENDOR_AMOUNT"
	MatchByVendorDate   MatchBasis = "VENDOR_DATE"
)

// AnnotatedInvoice pairs an invoice with its total in the reference
// currency.
type AnnotatedInvoice struct {
	Invoice InvoiceRecord
	Total   NormalizedAmount
}

// AnnotatedDoc pairs a supporting document with its amount in the
// reference currency.
type AnnotatedDoc struct {
	Doc    SupportDocRecord
	Amount NormalizedAmount
}

// MatchGroup links one invoice to the supporting documents claimed for it.
// Groups are created once by the matcher and consumed once by the
// validator.
type MatchGroup struct {
	Invoice    AnnotatedInvoice
	Docs       []AnnotatedDoc
	Basis      []MatchBasis
	Confidence decimal.Decimal // In [0,1]; 0 when no document matched
}

// Matched reports whether any supporting document was claimed.
func (g *MatchGroup) Matched() bool {
	return len(g.Docs) > 0
}

// HasBasis reports whether the group was matched on the given key type.
func (g *MatchGroup) HasBasis(basis MatchBasis) bool {
	for _, b := range g.Basis {
		if b == basis {
			return true
		}
	}
	return false
}
