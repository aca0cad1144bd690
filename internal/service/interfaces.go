// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

// ReportFilter defines filtering options for report queries.
type ReportFilter struct {
	RunID      string
	FailedOnly bool
	Limit      int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// FX rate operations
	SaveRates(ctx context.Context, rates []model.StoredRate) error
	GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
	GetNearestPriorRate(ctx context.Context, from, to string, date time.Time, window int) (decimal.Decimal, time.Time, error)

	// Report operations
	SaveReport(ctx context.Context, report *model.ValidationReport) error
	GetReports(ctx context.Context, filter ReportFilter) ([]model.ValidationReport, error)

	// Run tracking
	SaveRunSummary(ctx context.Context, summary *model.RunSummary) error
	GetRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RateSource is the rate-lookup port. Implementations return the exchange
// rate for one currency pair on one date, or common.ErrRateUnavailable when
// no rate exists for that date.
type RateSource interface {
	LookupRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
	Name() string
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// RunStats shows the results of a pipeline run.
type RunStats struct {
	RunID              string
	TotalInvoices      int
	Processed          int
	SkippedFiles       int
	ExcludedRecords    int
	Matched            int
	Passed             int
	PassedWithWarnings int
	Failed             int
	Duration           time.Duration
}
