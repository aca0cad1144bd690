package storage

import (
	"context"
	"fmt"

	"github.com/fathomworks/tally-ho/internal/model"
)

// SaveRunSummary persists the aggregate outcome of one pipeline run.
func (s *SQLiteStorage) SaveRunSummary(ctx context.Context, summary *model.RunSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("summary must not be nil")
	}
	if err := validateString(summary.RunID, "summary.RunID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, processed, skipped, failed, warned, passed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, summary.RunID, summary.Processed, summary.Skipped, summary.Failed,
		summary.Warned, summary.Passed, summary.StartedAt, summary.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// GetRunSummaries returns the most recent run summaries, newest first.
func (s *SQLiteStorage) GetRunSummaries(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, processed, skipped, failed, warned, passed, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []model.RunSummary
	for rows.Next() {
		var s model.RunSummary
		if err := rows.Scan(&s.RunID, &s.Processed, &s.Skipped, &s.Failed,
			&s.Warned, &s.Passed, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
