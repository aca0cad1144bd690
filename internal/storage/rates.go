package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

const rateDateLayout = "2006-01-02"

// SaveRates upserts a batch of locally imported exchange rates.
func (s *SQLiteStorage) SaveRates(ctx context.Context, rates []model.StoredRate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fx_rates (from_code, to_code, rate_date, rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_code, to_code, rate_date) DO UPDATE SET rate = excluded.rate
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rate insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rates {
		if _, err := stmt.ExecContext(ctx, r.From, r.To, r.Date.Format(rateDateLayout), r.Rate.String()); err != nil {
			return fmt.Errorf("failed to save rate %s->%s: %w", r.From, r.To, err)
		}
	}

	return tx.Commit()
}

// GetRate returns the stored rate for a pair on an exact date.
func (s *SQLiteStorage) GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT rate FROM fx_rates
		WHERE from_code = ? AND to_code = ? AND rate_date = ?
	`, from, to, date.Format(rateDateLayout)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s->%s on %s", common.ErrRateUnavailable, from, to, date.Format(rateDateLayout))
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query rate: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stored rate %q is not a decimal: %w", raw, err)
	}
	return rate, nil
}

// GetNearestPriorRate returns the latest stored rate on or before the
// given date within the window, and the date it was effective.
func (s *SQLiteStorage) GetNearestPriorRate(ctx context.Context, from, to string, date time.Time, window int) (decimal.Decimal, time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, time.Time{}, err
	}

	earliest := date.AddDate(0, 0, -window)

	var raw, rawDate string
	err := s.db.QueryRowContext(ctx, `
		SELECT rate, rate_date FROM fx_rates
		WHERE from_code = ? AND to_code = ? AND rate_date <= ? AND rate_date >= ?
		ORDER BY rate_date DESC
		LIMIT 1
	`, from, to, date.Format(rateDateLayout), earliest.Format(rateDateLayout)).Scan(&raw, &rawDate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s->%s on or before %s",
			common.ErrRateUnavailable, from, to, date.Format(rateDateLayout))
	}
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to query nearest prior rate: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("stored rate %q is not a decimal: %w", raw, err)
	}
	effective, err := time.Parse(rateDateLayout, rawDate)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("stored rate date %q is invalid: %w", rawDate, err)
	}
	return rate, effective, nil
}

// LookupRate implements the RateSource port over the local rates table.
func (s *SQLiteStorage) LookupRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	return s.GetRate(ctx, from, to, date)
}

// Name identifies this source in logs and resolver bookkeeping.
func (s *SQLiteStorage) Name() string {
	return "local-rates"
}
