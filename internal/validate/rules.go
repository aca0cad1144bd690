package validate

import (
	"fmt"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

// Rule identifiers, in execution order.
const (
	RuleAmountReconciliation = "amount-reconciliation"
	RuleLineArithmetic       = "line-arithmetic"
	RuleDuplicateInvoice     = "duplicate-invoice"
	RuleTaxRateSanity        = "tax-rate-sanity"
	RuleCurrencyConsistency  = "currency-consistency"
)

var one = decimal.NewFromInt(1)

// checkAmountReconciliation compares the invoice total against the sum of
// matched supporting-document amounts, both in the reference currency. An
// unmatched invoice is a warning, not an error.
func (v *Validator) checkAmountReconciliation(group *model.MatchGroup, report *model.ValidationReport) {
	if !group.Matched() {
		report.Findings = append(report.Findings, model.ValidationFinding{
			RuleID:   RuleAmountReconciliation,
			Severity: model.SeverityWarning,
			Message:  "no supporting documents matched this invoice",
		})
		return
	}

	docSum := decimal.Zero
	for _, doc := range group.Docs {
		docSum = docSum.Add(doc.Amount.ReferenceAmount)
	}

	invoiceTotal := group.Invoice.Total.ReferenceAmount
	diff := invoiceTotal.Sub(docSum).Abs()
	if diff.GreaterThan(v.config.AmountTolerance) {
		report.Findings = append(report.Findings, model.ValidationFinding{
			RuleID:   RuleAmountReconciliation,
			Severity: model.SeverityError,
			Message: fmt.Sprintf("invoice total %s %s does not reconcile with supporting documents total %s %s (difference %s)",
				invoiceTotal.StringFixed(2), group.Invoice.Total.ReferenceCurrency,
				docSum.StringFixed(2), group.Invoice.Total.ReferenceCurrency,
				diff.StringFixed(2)),
			Field: "total_amount",
		})
	}
}

// checkLineArithmetic verifies each line's declared total against
// quantity x unit price x (1 + tax rate).
func (v *Validator) checkLineArithmetic(group *model.MatchGroup, report *model.ValidationReport) {
	for i, line := range group.Invoice.Invoice.LineItems {
		expected := line.ExpectedTotal()
		diff := line.LineTotal.Sub(expected).Abs()
		if diff.GreaterThan(v.config.LineTolerance) {
			report.Findings = append(report.Findings, model.ValidationFinding{
				RuleID:   RuleLineArithmetic,
				Severity: model.SeverityError,
				Message: fmt.Sprintf("declared line total %s differs from computed %s",
					line.LineTotal.StringFixed(2), expected.StringFixed(2)),
				Field: fmt.Sprintf("line_items[%d].line_total", i),
			})
		}
	}
}

// checkDuplicate registers the invoice identity and flags repeats of the
// invoice ID or the vendor+amount+date combination within the run.
func (v *Validator) checkDuplicate(group *model.MatchGroup, report *model.ValidationReport) {
	inv := group.Invoice.Invoice
	duplicateID, duplicateIdentity := v.registry.Register(&inv)

	if duplicateID {
		report.Findings = append(report.Findings, model.ValidationFinding{
			RuleID:   RuleDuplicateInvoice,
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("invoice ID %s already seen in this run", inv.ID),
			Field:    "invoice_id",
		})
	}
	if duplicateIdentity {
		report.Findings = append(report.Findings, model.ValidationFinding{
			RuleID:   RuleDuplicateInvoice,
			Severity: model.SeverityError,
			Message:  "another invoice with the same vendor, amount and date already seen in this run",
		})
	}
}

// checkTaxRates flags tax rates outside the jurisdiction's allowed band.
// Negative rates and rates above 100% are errors regardless of the band.
func (v *Validator) checkTaxRates(group *model.MatchGroup, report *model.ValidationReport) {
	band, ok := v.config.TaxBands[v.config.Jurisdiction]
	if !ok {
		band = v.config.TaxBands["default"]
	}

	for i, line := range group.Invoice.Invoice.LineItems {
		field := fmt.Sprintf("line_items[%d].tax_rate", i)

		if line.TaxRate.IsNegative() || line.TaxRate.GreaterThan(one) {
			report.Findings = append(report.Findings, model.ValidationFinding{
				RuleID:   RuleTaxRateSanity,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("tax rate %s is outside [0,1]", line.TaxRate.String()),
				Field:    field,
			})
			continue
		}

		if line.TaxRate.LessThan(band.Min) || line.TaxRate.GreaterThan(band.Max) {
			report.Findings = append(report.Findings, model.ValidationFinding{
				RuleID:   RuleTaxRateSanity,
				Severity: model.SeverityWarning,
				Message: fmt.Sprintf("tax rate %s outside expected range [%s, %s] for jurisdiction %s",
					line.TaxRate.String(), band.Min.String(), band.Max.String(), v.config.Jurisdiction),
				Field: field,
			})
		}
	}
}

// checkCurrencyConsistency flags line items declaring a currency other
// than the invoice's.
func (v *Validator) checkCurrencyConsistency(group *model.MatchGroup, report *model.ValidationReport) {
	invoiceCurrency := group.Invoice.Invoice.CurrencyCode
	for i, line := range group.Invoice.Invoice.LineItems {
		if line.CurrencyCode != "" && line.CurrencyCode != invoiceCurrency {
			report.Findings = append(report.Findings, model.ValidationFinding{
				RuleID:   RuleCurrencyConsistency,
				Severity: model.SeverityError,
				Message: fmt.Sprintf("line currency %s differs from invoice currency %s",
					line.CurrencyCode, invoiceCurrency),
				Field: fmt.Sprintf("line_items[%d].currency_code", i),
			})
		}
	}
}
