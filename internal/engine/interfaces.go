package engine

import (
	"context"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

// RateResolver annotates amounts with their reference-currency equivalent.
type RateResolver interface {
	Resolve(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (model.NormalizedAmount, error)
}

// ReportStore persists validation reports and run summaries.
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.ValidationReport) error
	SaveRunSummary(ctx context.Context, summary *model.RunSummary) error
}
