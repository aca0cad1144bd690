package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoredRate is one locally held exchange rate, keyed by currency pair and
// effective date.
type StoredRate struct {
	Date time.Time
	From string
	To   string
	Rate decimal.Decimal
}
