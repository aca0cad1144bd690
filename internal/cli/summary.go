package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/fathomworks/tally-ho/internal/service"
)

// RenderRunSummary renders the end-of-run summary block.
func RenderRunSummary(stats *service.RunStats) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Reconciliation summary"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Run:        %s\n", SubtleStyle.Render(stats.RunID)))
	b.WriteString(fmt.Sprintf("  Processed:  %d of %d invoices\n", stats.Processed, stats.TotalInvoices))
	b.WriteString(fmt.Sprintf("  Matched:    %d\n", stats.Matched))
	b.WriteString(fmt.Sprintf("  %s\n", FormatSuccess(fmt.Sprintf("Passed:     %d", stats.Passed))))
	b.WriteString(fmt.Sprintf("  %s\n", FormatWarning(fmt.Sprintf("Warnings:   %d", stats.PassedWithWarnings))))
	b.WriteString(fmt.Sprintf("  %s\n", FormatError(fmt.Sprintf("Failed:     %d", stats.Failed))))
	if stats.SkippedFiles > 0 || stats.ExcludedRecords > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("  Skipped files: %d, excluded records: %d\n",
			stats.SkippedFiles, stats.ExcludedRecords)))
	}
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("  Duration: %s", stats.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	return b.String()
}

// RenderReport renders one validation report with its findings.
func RenderReport(report *model.ValidationReport) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s", report.InvoiceID, statusLabel(report.Status))
	b.WriteString(header)
	b.WriteString("\n")

	for _, finding := range report.Findings {
		line := fmt.Sprintf("    [%s] %s", finding.RuleID, finding.Message)
		if finding.Field != "" {
			line += SubtleStyle.Render(" (" + finding.Field + ")")
		}
		switch finding.Severity {
		case model.SeverityError:
			b.WriteString(ErrorStyle.Render(line))
		case model.SeverityWarning:
			b.WriteString(WarningStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func statusLabel(status model.ReportStatus) string {
	switch status {
	case model.StatusPassed:
		return FormatSuccess("passed")
	case model.StatusPassedWithWarnings:
		return FormatWarning("passed with warnings")
	case model.StatusFailed:
		return FormatError("failed")
	default:
		return string(status)
	}
}
