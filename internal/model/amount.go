package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedAmount is an amount annotated with its reference-currency
// equivalent. ReferenceAmount always equals Original x FXRate.
type NormalizedAmount struct {
	RateDate          time.Time
	Currency          string
	ReferenceCurrency string
	Original          decimal.Decimal
	ReferenceAmount   decimal.Decimal
	FXRate            decimal.Decimal
}

// NewNormalizedAmount constructs a NormalizedAmount, deriving the reference
// amount from the original and the rate so the invariant holds.
func NewNormalizedAmount(original decimal.Decimal, currency, referenceCurrency string, rate decimal.Decimal, rateDate time.Time) NormalizedAmount {
	return NormalizedAmount{
		Original:          original,
		Currency:          currency,
		ReferenceCurrency: referenceCurrency,
		FXRate:            rate,
		ReferenceAmount:   original.Mul(rate),
		RateDate:          rateDate,
	}
}
