package storage

import (
	"context"
	"testing"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := setupStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSaveAndGetRate(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	rates := []model.StoredRate{
		{From: "EUR", To: "USD", Date: date(2024, 3, 1), Rate: decimal.RequireFromString("1.0845")},
		{From: "GBP", To: "USD", Date: date(2024, 3, 1), Rate: decimal.RequireFromString("1.2650")},
	}
	require.NoError(t, store.SaveRates(ctx, rates))

	rate, err := store.GetRate(ctx, "EUR", "USD", date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.0845")), "got %s", rate)

	_, err = store.GetRate(ctx, "EUR", "USD", date(2024, 3, 2))
	assert.ErrorIs(t, err, common.ErrRateUnavailable)
}

func TestSaveRatesUpserts(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	first := []model.StoredRate{{From: "EUR", To: "USD", Date: date(2024, 3, 1), Rate: decimal.RequireFromString("1.08")}}
	require.NoError(t, store.SaveRates(ctx, first))

	second := []model.StoredRate{{From: "EUR", To: "USD", Date: date(2024, 3, 1), Rate: decimal.RequireFromString("1.09")}}
	require.NoError(t, store.SaveRates(ctx, second))

	rate, err := store.GetRate(ctx, "EUR", "USD", date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.09")))
}

func TestGetNearestPriorRate(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	rates := []model.StoredRate{
		{From: "EUR", To: "USD", Date: date(2024, 2, 20), Rate: decimal.RequireFromString("1.07")},
		{From: "EUR", To: "USD", Date: date(2024, 2, 27), Rate: decimal.RequireFromString("1.08")},
	}
	require.NoError(t, store.SaveRates(ctx, rates))

	rate, effective, err := store.GetNearestPriorRate(ctx, "EUR", "USD", date(2024, 3, 1), 7)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.08")), "latest prior rate wins")
	assert.Equal(t, date(2024, 2, 27), effective)

	// A narrow window excludes everything.
	_, _, err = store.GetNearestPriorRate(ctx, "EUR", "USD", date(2024, 3, 10), 2)
	assert.ErrorIs(t, err, common.ErrRateUnavailable)
}

func TestSaveAndGetReports(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	failed := &model.ValidationReport{
		InvoiceID:       "INV-1",
		RunID:           "run-1",
		Status:          model.StatusFailed,
		MatchConfidence: decimal.RequireFromString("0.8"),
		ValidatedAt:     time.Now().UTC(),
		Findings: []model.ValidationFinding{
			{RuleID: "amount-reconciliation", Severity: model.SeverityError, Message: "does not reconcile", Field: "total_amount"},
			{RuleID: "tax-rate-sanity", Severity: model.SeverityWarning, Message: "unusual tax rate"},
		},
	}
	passed := &model.ValidationReport{
		InvoiceID:       "INV-2",
		RunID:           "run-1",
		Status:          model.StatusPassed,
		MatchConfidence: decimal.RequireFromString("1"),
		ValidatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.SaveReport(ctx, failed))
	require.NoError(t, store.SaveReport(ctx, passed))

	all, err := store.GetReports(ctx, service.ReportFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)

	failedOnly, err := store.GetReports(ctx, service.ReportFilter{RunID: "run-1", FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failedOnly, 1)
	assert.Equal(t, "INV-1", failedOnly[0].InvoiceID)
	require.Len(t, failedOnly[0].Findings, 2)
	assert.Equal(t, "amount-reconciliation", failedOnly[0].Findings[0].RuleID, "finding order preserved")
	assert.Equal(t, "total_amount", failedOnly[0].Findings[0].Field)
	assert.True(t, failedOnly[0].MatchConfidence.Equal(decimal.RequireFromString("0.8")))
}

func TestSaveAndGetRunSummaries(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	summary := &model.RunSummary{
		RunID:      "run-1",
		Processed:  10,
		Skipped:    1,
		Failed:     2,
		Warned:     3,
		Passed:     5,
		StartedAt:  date(2024, 3, 1),
		FinishedAt: date(2024, 3, 1).Add(time.Minute),
	}
	require.NoError(t, store.SaveRunSummary(ctx, summary))

	summaries, err := store.GetRunSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 10, summaries[0].Processed)
	assert.Equal(t, 5, summaries[0].Passed)
}

func TestLookupRateImplementsRateSource(t *testing.T) {
	store := setupStorage(t)
	var _ service.RateSource = store

	_, err := store.LookupRate(context.Background(), "EUR", "USD", date(2024, 3, 1))
	assert.ErrorIs(t, err, common.ErrRateUnavailable)
}
