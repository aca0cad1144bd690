// Package engine implements the batch reconciliation pipeline: ingest,
// normalize, FX-annotate, match and validate a run's invoices against
// their supporting documents.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/ingest"
	"github.com/fathomworks/tally-ho/internal/match"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/fathomworks/tally-ho/internal/normalize"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/fathomworks/tally-ho/internal/validate"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var oneDecimal = decimal.NewFromInt(1)

// Config holds configuration options for the reconciliation engine.
type Config struct {
	ReferenceCurrency string
	Workers           int
	ShowProgress      bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ReferenceCurrency: "USD",
		Workers:           8,
	}
}

// Options selects the inputs for one run.
type Options struct {
	InvoiceDir    string
	SupportDocDir string
	DryRun        bool
}

// Engine orchestrates one reconciliation run.
type Engine struct {
	normalizer *normalize.Normalizer
	resolver   RateResolver
	matcher    *match.Matcher
	validator  *validate.Validator
	store      ReportStore
	config     Config
}

// New creates a reconciliation engine with the given collaborators. store
// may be nil for dry runs.
func New(normalizer *normalize.Normalizer, resolver RateResolver, matcher *match.Matcher, validator *validate.Validator, store ReportStore, config Config) *Engine {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.ReferenceCurrency == "" {
		config.ReferenceCurrency = DefaultConfig().ReferenceCurrency
	}
	return &Engine{
		normalizer: normalizer,
		resolver:   resolver,
		matcher:    matcher,
		validator:  validator,
		store:      store,
		config:     config,
	}
}

// annotatedInvoice carries a normalized, FX-annotated invoice through the
// pipeline along with findings raised before validation.
type annotatedInvoice struct {
	record      model.AnnotatedInvoice
	preFindings []model.ValidationFinding
	excluded    bool
}

// Run executes the full pipeline and returns run statistics plus the
// per-invoice reports in invoice input order. Per-record problems are
// logged and counted, never fatal; only an unreachable rate source chain
// aborts the run.
func (e *Engine) Run(ctx context.Context, opts Options) (*service.RunStats, []model.ValidationReport, error) {
	started := time.Now().UTC()
	runID := uuid.New().String()
	slog.Info("Starting reconciliation run",
		"run_id", runID,
		"invoices", opts.InvoiceDir,
		"support_docs", opts.SupportDocDir,
		"dry_run", opts.DryRun)

	rawInvoices, skippedInvoices, err := ingest.ReadInvoiceDir(opts.InvoiceDir)
	if err != nil {
		return nil, nil, common.NewUserError("failed to read invoice directory", err)
	}
	rawDocs, skippedDocs, err := ingest.ReadSupportDocDir(opts.SupportDocDir)
	if err != nil {
		return nil, nil, common.NewUserError("failed to read support document directory", err)
	}

	stats := &service.RunStats{
		RunID:         runID,
		TotalInvoices: len(rawInvoices),
		SkippedFiles:  skippedInvoices + skippedDocs,
	}

	invoices, excludedInvoices, err := e.prepareInvoices(ctx, rawInvoices)
	if err != nil {
		return nil, nil, err
	}
	docs, excludedDocs, err := e.prepareDocs(ctx, rawDocs)
	if err != nil {
		return nil, nil, err
	}
	stats.ExcludedRecords = excludedInvoices + excludedDocs

	// Matching is the serialized phase: documents are claimed in invoice
	// input order.
	matchInput := make([]model.AnnotatedInvoice, 0, len(invoices))
	for _, inv := range invoices {
		matchInput = append(matchInput, inv.record)
	}
	groups := e.matcher.Match(matchInput, docs)

	for _, g := range groups {
		if g.Matched() {
			stats.Matched++
		}
	}
	slog.Info("Matching complete",
		"invoices", len(groups),
		"matched", stats.Matched,
		"documents", len(docs))

	reports, err := e.validateAll(ctx, groups, invoices, runID)
	if err != nil {
		return nil, nil, err
	}

	for _, report := range reports {
		stats.Processed++
		switch report.Status {
		case model.StatusPassed:
			stats.Passed++
		case model.StatusPassedWithWarnings:
			stats.PassedWithWarnings++
		case model.StatusFailed:
			stats.Failed++
		}
	}
	stats.Duration = time.Since(started)

	if !opts.DryRun && e.store != nil {
		if err := e.persist(ctx, runID, started, stats, reports); err != nil {
			return nil, nil, err
		}
	}

	slog.Info("Reconciliation run complete",
		"run_id", runID,
		"processed", stats.Processed,
		"passed", stats.Passed,
		"warnings", stats.PassedWithWarnings,
		"failed", stats.Failed,
		"skipped_files", stats.SkippedFiles,
		"excluded_records", stats.ExcludedRecords,
		"duration", stats.Duration)

	return stats, reports, nil
}

// prepareInvoices normalizes and FX-annotates the raw invoices in
// parallel. Malformed records are excluded and counted; a missing FX rate
// downgrades to a warning finding with amounts left in the original
// currency.
func (e *Engine) prepareInvoices(ctx context.Context, raws []ingest.RawInvoice) ([]annotatedInvoice, int, error) {
	results := make([]annotatedInvoice, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			rec, err := e.normalizer.NormalizeInvoice(raw)
			if err != nil {
				if errors.Is(err, common.ErrMalformedField) {
					common.LogError(err, "Excluding malformed invoice", common.Fields{"file": raw.SourceFile})
					results[i] = annotatedInvoice{excluded: true}
					return nil
				}
				return err
			}

			total, findings, err := e.annotate(gctx, rec.TotalAmount, rec.CurrencyCode, rec.IssueDate, rec.ID)
			if err != nil {
				return err
			}
			results[i] = annotatedInvoice{
				record:      model.AnnotatedInvoice{Invoice: rec, Total: total},
				preFindings: findings,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, e.classifyPipelineError(err)
	}

	kept := make([]annotatedInvoice, 0, len(results))
	excluded := 0
	for _, r := range results {
		if r.excluded {
			excluded++
			continue
		}
		kept = append(kept, r)
	}
	return kept, excluded, nil
}

func (e *Engine) prepareDocs(ctx context.Context, raws []ingest.RawSupportDoc) ([]model.AnnotatedDoc, int, error) {
	results := make([]*model.AnnotatedDoc, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			rec, err := e.normalizer.NormalizeSupportDoc(raw)
			if err != nil {
				if errors.Is(err, common.ErrMalformedField) {
					common.LogError(err, "Excluding malformed support document", common.Fields{"file": raw.SourceFile})
					return nil
				}
				return err
			}

			amount, _, err := e.annotate(gctx, rec.Amount, rec.CurrencyCode, rec.IssueDate, rec.DocID)
			if err != nil {
				return err
			}
			results[i] = &model.AnnotatedDoc{Doc: rec, Amount: amount}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, e.classifyPipelineError(err)
	}

	kept := make([]model.AnnotatedDoc, 0, len(results))
	excluded := 0
	for _, r := range results {
		if r == nil {
			excluded++
			continue
		}
		kept = append(kept, *r)
	}
	return kept, excluded, nil
}

// annotate resolves an amount into the reference currency. A missing rate
// is recoverable: the amount keeps rate 1 and the condition surfaces as a
// warning finding on the owning invoice's report.
func (e *Engine) annotate(ctx context.Context, amount decimal.Decimal, currency string, asOf time.Time, recordID string) (model.NormalizedAmount, []model.ValidationFinding, error) {
	normalized, err := e.resolver.Resolve(ctx, amount, currency, e.config.ReferenceCurrency, asOf)
	if err == nil {
		return normalized, nil, nil
	}

	if errors.Is(err, common.ErrRateUnavailable) {
		slog.Warn("FX rate unavailable, keeping original currency",
			"record_id", recordID,
			"currency", currency,
			"as_of", asOf.Format("2006-01-02"))
		fallback := model.NewNormalizedAmount(amount, currency, currency, oneDecimal, asOf)
		finding := model.ValidationFinding{
			RuleID:   "fx-rate",
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("no %s->%s rate available for %s; amounts compared in %s",
				currency, e.config.ReferenceCurrency, asOf.Format("2006-01-02"), currency),
		}
		return fallback, []model.ValidationFinding{finding}, nil
	}

	return model.NormalizedAmount{}, nil, err
}

// validateAll runs the validator over every match group in parallel; the
// duplicate registry inside the validator is the only shared state.
// Reports come back in invoice input order regardless of completion order.
func (e *Engine) validateAll(ctx context.Context, groups []model.MatchGroup, invoices []annotatedInvoice, runID string) ([]model.ValidationReport, error) {
	reports := make([]model.ValidationReport, len(groups))

	var bar *progressbar.ProgressBar
	if e.config.ShowProgress {
		bar = progressbar.Default(int64(len(groups)), "validating")
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			report := e.validator.Validate(group, invoices[i].preFindings...)
			report.RunID = runID
			reports[i] = report
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// persist writes reports one at a time so an aborted run leaves the
// completed reports behind as valid work.
func (e *Engine) persist(ctx context.Context, runID string, started time.Time, stats *service.RunStats, reports []model.ValidationReport) error {
	for i := range reports {
		if err := ctx.Err(); err != nil {
			slog.Warn("Run interrupted, keeping reports persisted so far", "persisted", i)
			return nil
		}
		if err := e.store.SaveReport(ctx, &reports[i]); err != nil {
			return common.NewUserError("failed to persist validation report", err)
		}
	}

	summary := &model.RunSummary{
		RunID:      runID,
		Processed:  stats.Processed,
		Skipped:    stats.SkippedFiles + stats.ExcludedRecords,
		Failed:     stats.Failed,
		Warned:     stats.PassedWithWarnings,
		Passed:     stats.Passed,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := e.store.SaveRunSummary(ctx, summary); err != nil {
		return common.NewUserError("failed to persist run summary", err)
	}
	return nil
}

// classifyPipelineError separates systemic failures from the rest. An
// unreachable rate source chain is the one condition that aborts a run.
func (e *Engine) classifyPipelineError(err error) error {
	if errors.Is(err, common.ErrRateSourceDown) {
		return common.NewUserError("rate lookup is entirely unreachable, aborting run", err)
	}
	return err
}
