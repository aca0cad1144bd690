// Package fx converts amounts across currencies to the run's reference
// currency through a chain of rate-lookup sources.
package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/shopspring/decimal"
)

// FallbackPolicy selects what happens when no rate exists for a date.
type FallbackPolicy string

// Fallback policies.
const (
	// FallbackFail propagates ErrRateUnavailable to the caller.
	FallbackFail FallbackPolicy = "fail"
	// FallbackNearestPrior uses the latest rate on or before the requested
	// date within the configured window.
	FallbackNearestPrior FallbackPolicy = "nearest_prior_date"
)

// Config holds configuration options for the resolver.
type Config struct {
	Policy             FallbackPolicy
	FallbackWindowDays int
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Policy:             FallbackNearestPrior,
		FallbackWindowDays: 7,
	}
}

type rateKey struct {
	from string
	to   string
	date string
}

type resolvedRate struct {
	rate     decimal.Decimal
	rateDate time.Time
}

// Resolver resolves exchange rates through an ordered source chain and
// caches results for the lifetime of a run, so identical inputs always
// produce identical NormalizedAmounts. Safe for concurrent use; a
// duplicated lookup on a cache miss is harmless because writes are
// idempotent.
type Resolver struct {
	sources []service.RateSource
	cache   map[rateKey]resolvedRate
	down    map[string]bool
	config  Config
	mu      sync.RWMutex
}

// NewResolver creates a resolver over the given source chain; sources are
// consulted in order.
func NewResolver(config Config, sources ...service.RateSource) *Resolver {
	if config.FallbackWindowDays <= 0 {
		config.FallbackWindowDays = DefaultConfig().FallbackWindowDays
	}
	if config.Policy == "" {
		config.Policy = FallbackFail
	}
	return &Resolver{
		sources: sources,
		cache:   make(map[rateKey]resolvedRate),
		down:    make(map[string]bool),
		config:  config,
	}
}

// Resolve annotates an amount with its equivalent in the reference
// currency as of the given date. Equal currencies use rate 1 exactly with
// no lookup. A missing rate yields ErrRateUnavailable unless the fallback
// policy finds a prior one; an entirely unreachable source chain yields
// ErrRateSourceDown, which callers treat as fatal.
func (r *Resolver) Resolve(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (model.NormalizedAmount, error) {
	if from == to {
		return model.NewNormalizedAmount(amount, from, to, decimal.NewFromInt(1), asOf), nil
	}

	key := rateKey{from: from, to: to, date: asOf.Format("2006-01-02")}

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return model.NewNormalizedAmount(amount, from, to, cached.rate, cached.rateDate), nil
	}

	resolved, err := r.lookupWithFallback(ctx, from, to, asOf)
	if err != nil {
		return model.NormalizedAmount{}, err
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()

	return model.NewNormalizedAmount(amount, from, to, resolved.rate, resolved.rateDate), nil
}

func (r *Resolver) lookupWithFallback(ctx context.Context, from, to string, asOf time.Time) (resolvedRate, error) {
	resolved, err := r.lookupChain(ctx, from, to, asOf)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, common.ErrRateUnavailable) {
		return resolvedRate{}, err
	}

	if r.config.Policy != FallbackNearestPrior {
		return resolvedRate{}, fmt.Errorf("%w: %s->%s on %s", common.ErrRateUnavailable, from, to, asOf.Format("2006-01-02"))
	}

	for days := 1; days <= r.config.FallbackWindowDays; days++ {
		prior := asOf.AddDate(0, 0, -days)
		resolved, err = r.lookupChain(ctx, from, to, prior)
		if err == nil {
			slog.Debug("Resolved rate from prior date",
				"from", from, "to", to,
				"requested", asOf.Format("2006-01-02"),
				"used", prior.Format("2006-01-02"))
			return resolved, nil
		}
		if !errors.Is(err, common.ErrRateUnavailable) {
			return resolvedRate{}, err
		}
	}

	return resolvedRate{}, fmt.Errorf("%w: %s->%s on %s (no prior rate within %d days)",
		common.ErrRateUnavailable, from, to, asOf.Format("2006-01-02"), r.config.FallbackWindowDays)
}

// lookupChain consults each source in order. A source that reports itself
// unreachable is skipped for the rest of the run; when every source is
// unreachable the chain as a whole is down and the run must abort.
func (r *Resolver) lookupChain(ctx context.Context, from, to string, date time.Time) (resolvedRate, error) {
	available := 0
	for _, src := range r.sources {
		r.mu.RLock()
		skip := r.down[src.Name()]
		r.mu.RUnlock()
		if skip {
			continue
		}
		available++

		rate, err := src.LookupRate(ctx, from, to, date)
		if err == nil {
			return resolvedRate{rate: rate, rateDate: date}, nil
		}
		if errors.Is(err, common.ErrRateUnavailable) || errors.Is(err, common.ErrNotFound) {
			continue
		}
		if errors.Is(err, common.ErrRateSourceDown) {
			slog.Warn("Rate source unreachable, disabling for this run", "source", src.Name(), "error", err)
			r.mu.Lock()
			r.down[src.Name()] = true
			r.mu.Unlock()
			available--
			continue
		}
		return resolvedRate{}, err
	}

	if available == 0 {
		return resolvedRate{}, fmt.Errorf("%w: no rate source reachable", common.ErrRateSourceDown)
	}
	return resolvedRate{}, fmt.Errorf("%w: %s->%s on %s", common.ErrRateUnavailable, from, to, date.Format("2006-01-02"))
}
