// Package validate runs the business-rule set against matched invoices
// and produces structured validation reports. Rule violations are data,
// not failures: every rule always runs, findings accumulate in a fixed
// order, and the validator never returns an error for bad business data.
package validate

import (
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

// TaxBand is the allowed tax-rate range for one jurisdiction.
type TaxBand struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Config holds configuration options for the validator.
type Config struct {
	TaxBands map[string]TaxBand
	// Jurisdiction selects the tax band applied to every invoice in the
	// run. Falls back to "default".
	Jurisdiction string
	// AmountTolerance bounds the reconciliation difference between an
	// invoice total and its supporting documents, in reference-currency
	// units.
	AmountTolerance decimal.Decimal
	// LineTolerance bounds per-line arithmetic drift.
	LineTolerance decimal.Decimal
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.RequireFromString("0.01"),
		LineTolerance:   decimal.RequireFromString("0.01"),
		Jurisdiction:    "default",
		TaxBands: map[string]TaxBand{
			"default": {Min: decimal.Zero, Max: decimal.RequireFromString("0.30")},
		},
	}
}

// Validator evaluates the rule set against match groups.
type Validator struct {
	registry *Registry
	config   Config
	rules    []rule
}

// rule is one validation rule. Rules run in slice order, unconditionally,
// so a single report surfaces every issue in one pass and tests can assert
// exact finding order.
type rule struct {
	run func(v *Validator, group *model.MatchGroup, report *model.ValidationReport)
	id  string
}

// New creates a validator with the given configuration and a fresh
// duplicate registry.
func New(config Config) *Validator {
	defaults := DefaultConfig()
	if config.AmountTolerance.IsZero() {
		config.AmountTolerance = defaults.AmountTolerance
	}
	if config.LineTolerance.IsZero() {
		config.LineTolerance = defaults.LineTolerance
	}
	if config.Jurisdiction == "" {
		config.Jurisdiction = defaults.Jurisdiction
	}
	if len(config.TaxBands) == 0 {
		config.TaxBands = defaults.TaxBands
	}

	return &Validator{
		config:   config,
		registry: NewRegistry(),
		rules: []rule{
			{id: RuleAmountReconciliation, run: (*Validator).checkAmountReconciliation},
			{id: RuleLineArithmetic, run: (*Validator).checkLineArithmetic},
			{id: RuleDuplicateInvoice, run: (*Validator).checkDuplicate},
			{id: RuleTaxRateSanity, run: (*Validator).checkTaxRates},
			{id: RuleCurrencyConsistency, run: (*Validator).checkCurrencyConsistency},
		},
	}
}

// Validate runs every rule against one match group and returns the report.
// preFindings lets the pipeline surface earlier per-invoice conditions
// (e.g. an unavailable FX rate) ahead of the rule findings.
func (v *Validator) Validate(group model.MatchGroup, preFindings ...model.ValidationFinding) model.ValidationReport {
	report := model.ValidationReport{
		InvoiceID:       group.Invoice.Invoice.ID,
		MatchConfidence: group.Confidence,
		ValidatedAt:     time.Now().UTC(),
		Findings:        append([]model.ValidationFinding{}, preFindings...),
	}

	for _, r := range v.rules {
		r.run(v, &group, &report)
	}

	report.Status = report.ComputeStatus()
	return report
}
