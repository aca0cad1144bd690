package validate

import (
	"testing"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(amount string, issued time.Time) model.NormalizedAmount {
	return model.NewNormalizedAmount(decimal.RequireFromString(amount), "USD", "USD", decimal.NewFromInt(1), issued)
}

func matchedGroup(id, amount string, docAmounts ...string) model.MatchGroup {
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	group := model.MatchGroup{
		Invoice: model.AnnotatedInvoice{
			Invoice: model.InvoiceRecord{
				ID:           id,
				VendorName:   "Acme",
				IssueDate:    issued,
				CurrencyCode: "USD",
				TotalAmount:  decimal.RequireFromString(amount),
			},
			Total: usd(amount, issued),
		},
		Confidence: decimal.RequireFromString("1.0"),
	}
	for i, docAmount := range docAmounts {
		group.Docs = append(group.Docs, model.AnnotatedDoc{
			Doc: model.SupportDocRecord{
				DocID:   id + "-doc-" + string(rune('a'+i)),
				Amount:  decimal.RequireFromString(docAmount),
				DocType: model.DocTypePurchaseOrder,
			},
			Amount: usd(docAmount, issued),
		})
	}
	return group
}

func findingsByRule(report model.ValidationReport, ruleID string) []model.ValidationFinding {
	var out []model.ValidationFinding
	for _, f := range report.Findings {
		if f.RuleID == ruleID {
			out = append(out, f)
		}
	}
	return out
}

func TestAmountReconciliationPasses(t *testing.T) {
	v := New(DefaultConfig())

	report := v.Validate(matchedGroup("INV-1", "1000", "1000"))

	assert.Empty(t, report.Findings)
	assert.Equal(t, model.StatusPassed, report.Status)
}

func TestAmountReconciliationWithinTolerance(t *testing.T) {
	v := New(DefaultConfig())

	report := v.Validate(matchedGroup("INV-1", "1000.00", "999.995"))
	assert.Equal(t, model.StatusPassed, report.Status)
}

func TestAmountReconciliationOutsideTolerance(t *testing.T) {
	v := New(DefaultConfig())

	report := v.Validate(matchedGroup("INV-1", "1000", "900"))

	findings := findingsByRule(report, RuleAmountReconciliation)
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityError, findings[0].Severity)
	assert.Equal(t, model.StatusFailed, report.Status)
}

func TestUnmatchedInvoiceIsWarning(t *testing.T) {
	v := New(DefaultConfig())

	group := matchedGroup("INV-2", "500")
	group.Confidence = decimal.Zero

	report := v.Validate(group)

	findings := findingsByRule(report, RuleAmountReconciliation)
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityWarning, findings[0].Severity)
	assert.Equal(t, model.StatusPassedWithWarnings, report.Status)
}

func TestLineArithmetic(t *testing.T) {
	v := New(DefaultConfig())

	group := matchedGroup("INV-1", "1000", "1000")
	group.Invoice.Invoice.LineItems = []model.LineItem{
		{
			Description: "Widgets",
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.NewFromInt(10),
			TaxRate:     decimal.RequireFromString("0.1"),
			LineTotal:   decimal.RequireFromString("25"), // computed: 22
		},
		{
			Description: "Grommets",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(50),
			TaxRate:     decimal.Zero,
			LineTotal:   decimal.RequireFromString("50"),
		},
	}

	report := v.Validate(group)

	findings := findingsByRule(report, RuleLineArithmetic)
	require.Len(t, findings, 1, "only the drifting line is flagged")
	assert.Equal(t, model.SeverityError, findings[0].Severity)
	assert.Equal(t, "line_items[0].line_total", findings[0].Field)
	assert.Equal(t, model.StatusFailed, report.Status)
}

func TestLineArithmeticToleranceBoundary(t *testing.T) {
	v := New(DefaultConfig())

	group := matchedGroup("INV-1", "1000", "1000")
	group.Invoice.Invoice.LineItems = []model.LineItem{
		{
			Quantity:  decimal.NewFromInt(2),
			UnitPrice: decimal.NewFromInt(10),
			TaxRate:   decimal.RequireFromString("0.1"),
			LineTotal: decimal.RequireFromString("22.01"), // exactly at tolerance
		},
	}

	report := v.Validate(group)
	assert.Empty(t, findingsByRule(report, RuleLineArithmetic))
}

func TestDuplicateInvoiceID(t *testing.T) {
	v := New(DefaultConfig())

	first := v.Validate(matchedGroup("INV-1", "1000", "1000"))
	assert.Equal(t, model.StatusPassed, first.Status)

	second := v.Validate(matchedGroup("INV-1", "1000", "1000"))
	findings := findingsByRule(second, RuleDuplicateInvoice)
	require.NotEmpty(t, findings)
	assert.Equal(t, model.SeverityError, findings[0].Severity)
	assert.Equal(t, model.StatusFailed, second.Status)
}

func TestDuplicateIdentity(t *testing.T) {
	v := New(DefaultConfig())

	_ = v.Validate(matchedGroup("INV-1", "1000", "1000"))
	// Different invoice ID, same vendor, amount and date.
	second := v.Validate(matchedGroup("INV-1-COPY", "1000", "1000"))

	findings := findingsByRule(second, RuleDuplicateInvoice)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "same vendor, amount and date")
}

func TestTaxRateSanity(t *testing.T) {
	tests := []struct {
		rate     string
		name     string
		severity model.Severity
		want     int
	}{
		{name: "in band", rate: "0.2", want: 0},
		{name: "zero", rate: "0", want: 0},
		{name: "above band", rate: "0.5", want: 1, severity: model.SeverityWarning},
		{name: "negative", rate: "-0.1", want: 1, severity: model.SeverityError},
		{name: "above one", rate: "1.5", want: 1, severity: model.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(DefaultConfig())
			group := matchedGroup("INV-1", "1000", "1000")
			rate := decimal.RequireFromString(tt.rate)
			group.Invoice.Invoice.LineItems = []model.LineItem{{
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(10),
				TaxRate:   rate,
				LineTotal: decimal.NewFromInt(10).Mul(decimal.NewFromInt(1).Add(rate)),
			}}

			report := v.Validate(group)
			findings := findingsByRule(report, RuleTaxRateSanity)
			require.Len(t, findings, tt.want)
			if tt.want > 0 {
				assert.Equal(t, tt.severity, findings[0].Severity)
			}
		})
	}
}

func TestCurrencyConsistency(t *testing.T) {
	v := New(DefaultConfig())

	group := matchedGroup("INV-1", "1000", "1000")
	group.Invoice.Invoice.LineItems = []model.LineItem{
		{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(10), CurrencyCode: "EUR"},
		{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(10), CurrencyCode: "USD"},
		{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(10)},
	}

	report := v.Validate(group)

	findings := findingsByRule(report, RuleCurrencyConsistency)
	require.Len(t, findings, 1)
	assert.Equal(t, "line_items[0].currency_code", findings[0].Field)
	assert.Equal(t, model.StatusFailed, report.Status)
}

func TestFindingOrderFollowsRuleOrder(t *testing.T) {
	v := New(DefaultConfig())

	// Break reconciliation, line arithmetic, tax and currency at once.
	group := matchedGroup("INV-1", "1000", "500")
	group.Invoice.Invoice.LineItems = []model.LineItem{{
		Quantity:     decimal.NewFromInt(2),
		UnitPrice:    decimal.NewFromInt(10),
		TaxRate:      decimal.RequireFromString("-0.5"),
		LineTotal:    decimal.RequireFromString("99"),
		CurrencyCode: "EUR",
	}}

	report := v.Validate(group)

	var order []string
	for _, f := range report.Findings {
		order = append(order, f.RuleID)
	}
	assert.Equal(t, []string{
		RuleAmountReconciliation,
		RuleLineArithmetic,
		RuleTaxRateSanity,
		RuleCurrencyConsistency,
	}, order)
}

func TestPreFindingsComeFirst(t *testing.T) {
	v := New(DefaultConfig())

	pre := model.ValidationFinding{RuleID: "fx-rate", Severity: model.SeverityWarning, Message: "no rate"}
	report := v.Validate(matchedGroup("INV-1", "1000", "500"), pre)

	require.NotEmpty(t, report.Findings)
	assert.Equal(t, "fx-rate", report.Findings[0].RuleID)
	assert.Equal(t, model.StatusFailed, report.Status, "reconciliation error still fails the report")
}
