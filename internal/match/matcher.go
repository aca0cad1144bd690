// Package match pairs invoices with supporting documents using composite
// keys and tolerance-based similarity. Matching is deterministic for a
// given input ordering: candidates are scored by a weighted rule set in
// strict priority order and ties break by issue date then document ID.
package match

import (
	"log/slog"
	"sort"
	"time"

	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/shopspring/decimal"
)

// Rule weights, in strict priority order. The highest rule that fires
// decides a candidate's score; weights never sum.
var (
	weightPOReference  = decimal.RequireFromString("1.0")
	weightVendorAmount = decimal.RequireFromString("0.8")
	weightVendorDate   = decimal.RequireFromString("0.5")
)

// Config holds configuration options for the matcher.
type Config struct {
	// AcceptThreshold is the minimum candidate score that forms a match.
	AcceptThreshold decimal.Decimal
	// AmountTolerance bounds reference-currency amount differences for the
	// vendor+amount rule.
	AmountTolerance decimal.Decimal
	// DateWindowDays bounds issue-date distance for the vendor+date rule.
	DateWindowDays int
}

// DefaultConfig returns the default matcher configuration.
func DefaultConfig() Config {
	return Config{
		AcceptThreshold: decimal.RequireFromString("0.5"),
		AmountTolerance: decimal.RequireFromString("0.01"),
		DateWindowDays:  3,
	}
}

// Matcher links invoices to supporting documents.
type Matcher struct {
	config Config
}

// New creates a matcher with the given configuration.
func New(config Config) *Matcher {
	if config.AcceptThreshold.IsZero() {
		config.AcceptThreshold = DefaultConfig().AcceptThreshold
	}
	if config.AmountTolerance.IsZero() {
		config.AmountTolerance = DefaultConfig().AmountTolerance
	}
	if config.DateWindowDays <= 0 {
		config.DateWindowDays = DefaultConfig().DateWindowDays
	}
	return &Matcher{config: config}
}

type candidate struct {
	doc   model.AnnotatedDoc
	basis model.MatchBasis
	score decimal.Decimal
}

// Match produces one MatchGroup per invoice, in invoice input order. Each
// supporting document is claimed by at most one invoice; an invoice with
// no candidate above the acceptance threshold gets an empty group with
// confidence zero, which is a reportable outcome rather than an error.
func (m *Matcher) Match(invoices []model.AnnotatedInvoice, docs []model.AnnotatedDoc) []model.MatchGroup {
	claims := newClaimSet()
	groups := make([]model.MatchGroup, 0, len(invoices))

	for _, inv := range invoices {
		group := m.matchOne(inv, docs, claims)
		groups = append(groups, group)
	}

	return groups
}

func (m *Matcher) matchOne(inv model.AnnotatedInvoice, docs []model.AnnotatedDoc, claims *claimSet) model.MatchGroup {
	candidates := make([]candidate, 0)
	for _, doc := range docs {
		if claims.IsClaimed(doc.Doc.DocID) {
			continue
		}
		score, basis, ok := m.score(inv, doc)
		if !ok || score.LessThan(m.config.AcceptThreshold) {
			continue
		}
		candidates = append(candidates, candidate{doc: doc, score: score, basis: basis})
	}

	if len(candidates) == 0 {
		return model.MatchGroup{
			Invoice:    inv,
			Confidence: decimal.Zero,
		}
	}

	// Score descending, then earliest issue date, then lexical doc ID.
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].score.Equal(candidates[j].score) {
			return candidates[i].score.GreaterThan(candidates[j].score)
		}
		di, dj := candidates[i].doc.Doc, candidates[j].doc.Doc
		if !di.IssueDate.Equal(dj.IssueDate) {
			return di.IssueDate.Before(dj.IssueDate)
		}
		return di.DocID < dj.DocID
	})

	group := model.MatchGroup{
		Invoice:    inv,
		Confidence: candidates[0].score,
	}

	seenBasis := make(map[model.MatchBasis]bool)
	for _, cand := range candidates {
		if !claims.Claim(cand.doc.Doc.DocID, inv.Invoice.ID) {
			continue
		}
		group.Docs = append(group.Docs, cand.doc)
		if !seenBasis[cand.basis] {
			seenBasis[cand.basis] = true
			group.Basis = append(group.Basis, cand.basis)
		}
	}

	slog.Debug("Matched invoice",
		"invoice_id", inv.Invoice.ID,
		"docs", len(group.Docs),
		"confidence", group.Confidence)

	return group
}

// score evaluates the weighted rules in priority order and returns the
// first that fires.
func (m *Matcher) score(inv model.AnnotatedInvoice, doc model.AnnotatedDoc) (decimal.Decimal, model.MatchBasis, bool) {
	if inv.Invoice.POReference != "" && inv.Invoice.POReference == doc.Doc.POReference {
		return weightPOReference, model.MatchByPOReference, true
	}

	if model.SameVendor(inv.Invoice.VendorName, doc.Doc.VendorName) {
		diff := inv.Total.ReferenceAmount.Sub(doc.Amount.ReferenceAmount).Abs()
		if diff.LessThanOrEqual(m.config.AmountTolerance) {
			return weightVendorAmount, model.MatchByVendorAmount, true
		}

		days := daysBetween(inv.Invoice.IssueDate, doc.Doc.IssueDate)
		if days <= m.config.DateWindowDays {
			return weightVendorDate, model.MatchByVendorDate, true
		}
	}

	return decimal.Zero, "", false
}

func daysBetween(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
