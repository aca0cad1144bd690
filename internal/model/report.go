package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity grades a validation finding.
type Severity string

// Finding severities.
const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ReportStatus is the overall outcome of validating one invoice.
type ReportStatus string

// Report status constants.
const (
	StatusPassed             ReportStatus = "PASSED"
	StatusPassedWithWarnings ReportStatus = "PASSED_WITH_WARNINGS"
	StatusFailed             ReportStatus = "FAILED"
)

// ValidationFinding is one reportable outcome of a validation rule.
type ValidationFinding struct {
	RuleID   string
	Severity Severity
	Message  string
	Field    string // Optional; empty when the finding is not field-specific
}

// ValidationReport is the terminal artifact for one invoice, handed to the
// report-rendering collaborator.
type ValidationReport struct {
	ValidatedAt     time.Time
	InvoiceID       string
	RunID           string
	Status          ReportStatus
	Findings        []ValidationFinding
	MatchConfidence decimal.Decimal
}

// ComputeStatus derives the overall status from the findings: any error
// fails the report, warnings alone downgrade it, otherwise it passes.
func (r *ValidationReport) ComputeStatus() ReportStatus {
	status := StatusPassed
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			return StatusFailed
		case SeverityWarning:
			status = StatusPassedWithWarnings
		case SeverityInfo:
		}
	}
	return status
}

// RunSummary aggregates the outcome of one pipeline run.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	RunID      string
	Processed  int
	Skipped    int
	Failed     int
	Warned     int
	Passed     int
}
