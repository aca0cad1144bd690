package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocType identifies the kind of supporting document.
type DocType string

// Supported document types.
const (
	DocTypePurchaseOrder DocType = "PURCHASE_ORDER"
	DocTypeDeliveryNote  DocType = "DELIVERY_NOTE"
	DocTypeReceipt       DocType = "RECEIPT"
)

// IsValid checks if the document type is one of the known variants.
func (t DocType) IsValid() bool {
	switch t {
	case DocTypePurchaseOrder, DocTypeDeliveryNote, DocTypeReceipt:
		return true
	}
	return false
}

// SupportDocRecord is a single extracted supporting document: a purchase
// order, delivery note or receipt that can evidence an invoice.
type SupportDocRecord struct {
	IssueDate    time.Time
	DocID        string
	DocType      DocType
	POReference  string
	VendorName   string
	CurrencyCode string
	SourceFile   string
	Amount       decimal.Decimal
}
