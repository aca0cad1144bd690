package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/shopspring/decimal"
)

// SaveReport persists a validation report and its findings.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.ValidationReport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("report must not be nil")
	}
	if err := validateString(report.InvoiceID, "report.InvoiceID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reports (run_id, invoice_id, status, match_confidence, validated_at)
		VALUES (?, ?, ?, ?, ?)
	`, report.RunID, report.InvoiceID, string(report.Status), report.MatchConfidence.String(), report.ValidatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report for invoice %s: %w", report.InvoiceID, err)
	}

	reportID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get report id: %w", err)
	}

	for i, finding := range report.Findings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO findings (report_id, position, rule_id, severity, message, field)
			VALUES (?, ?, ?, ?, ?, ?)
		`, reportID, i, finding.RuleID, string(finding.Severity), finding.Message, finding.Field); err != nil {
			return fmt.Errorf("failed to save finding %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetReports returns persisted reports matching the filter, findings
// included, newest runs first and finding order preserved.
func (s *SQLiteStorage) GetReports(ctx context.Context, filter service.ReportFilter) ([]model.ValidationReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, run_id, invoice_id, status, match_confidence, validated_at FROM reports`
	var conditions []string
	var args []any

	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "status = ?")
		args = append(args, string(model.StatusFailed))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []model.ValidationReport
	var ids []int64
	for rows.Next() {
		var id int64
		var report model.ValidationReport
		var status, confidence string
		var validatedAt time.Time
		if err := rows.Scan(&id, &report.RunID, &report.InvoiceID, &status, &confidence, &validatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report.Status = model.ReportStatus(status)
		report.ValidatedAt = validatedAt
		report.MatchConfidence, err = decimal.NewFromString(confidence)
		if err != nil {
			return nil, fmt.Errorf("stored confidence %q is not a decimal: %w", confidence, err)
		}
		reports = append(reports, report)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	for i, id := range ids {
		findings, err := s.getFindings(ctx, id)
		if err != nil {
			return nil, err
		}
		reports[i].Findings = findings
	}

	return reports, nil
}

func (s *SQLiteStorage) getFindings(ctx context.Context, reportID int64) ([]model.ValidationFinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, severity, message, COALESCE(field, '')
		FROM findings
		WHERE report_id = ?
		ORDER BY position
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var findings []model.ValidationFinding
	for rows.Next() {
		var f model.ValidationFinding
		var severity string
		if err := rows.Scan(&f.RuleID, &severity, &f.Message, &f.Field); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Severity = model.Severity(severity)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
