package main

import (
	"context"
	"fmt"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/config"
	"github.com/fathomworks/tally-ho/internal/engine"
	"github.com/fathomworks/tally-ho/internal/fx"
	"github.com/fathomworks/tally-ho/internal/match"
	"github.com/fathomworks/tally-ho/internal/normalize"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/fathomworks/tally-ho/internal/storage"
	"github.com/fathomworks/tally-ho/internal/validate"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// openStorage opens the configured database and applies migrations.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	path := viper.GetString("database.path")
	if path == "" {
		path = config.DefaultDatabasePath()
	}
	path = config.ExpandPath(path)

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, common.NewUserError("failed to open database", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("failed to migrate database", err)
	}
	return store, nil
}

// buildResolver wires the rate source chain: local rates first, then the
// remote API when enabled.
func buildResolver(store *storage.SQLiteStorage) (*fx.Resolver, error) {
	sources := []service.RateSource{store}
	if viper.GetBool("fx.remote_enabled") {
		sources = append(sources, fx.NewHTTPRateSource(
			viper.GetString("fx.api_base_url"),
			viper.GetDuration("fx.api_timeout"),
		))
	}

	policy := fx.FallbackPolicy(viper.GetString("fx.fallback_policy"))
	switch policy {
	case fx.FallbackFail, fx.FallbackNearestPrior:
	default:
		return nil, fmt.Errorf("%w: unknown fx.fallback_policy %q", common.ErrInvalidConfig, policy)
	}

	return fx.NewResolver(fx.Config{
		Policy:             policy,
		FallbackWindowDays: viper.GetInt("fx.fallback_window_days"),
	}, sources...), nil
}

func buildMatcher() (*match.Matcher, error) {
	threshold, err := decimalSetting("match.accept_threshold")
	if err != nil {
		return nil, err
	}
	tolerance, err := decimalSetting("match.amount_tolerance")
	if err != nil {
		return nil, err
	}
	return match.New(match.Config{
		AcceptThreshold: threshold,
		AmountTolerance: tolerance,
		DateWindowDays:  viper.GetInt("match.date_window_days"),
	}), nil
}

func buildValidator() (*validate.Validator, error) {
	amountTol, err := decimalSetting("validate.amount_tolerance")
	if err != nil {
		return nil, err
	}
	lineTol, err := decimalSetting("validate.line_tolerance")
	if err != nil {
		return nil, err
	}

	bands, err := taxBands()
	if err != nil {
		return nil, err
	}

	return validate.New(validate.Config{
		AmountTolerance: amountTol,
		LineTolerance:   lineTol,
		Jurisdiction:    viper.GetString("validate.jurisdiction"),
		TaxBands:        bands,
	}), nil
}

// taxBands reads the per-jurisdiction tax table, e.g.
//
//	validate:
//	  tax_bands:
//	    de: {min: "0.07", max: "0.19"}
func taxBands() (map[string]validate.TaxBand, error) {
	raw := viper.GetStringMap("validate.tax_bands")
	if len(raw) == 0 {
		return nil, nil
	}

	bands := make(map[string]validate.TaxBand, len(raw))
	for jurisdiction := range raw {
		minKey := fmt.Sprintf("validate.tax_bands.%s.min", jurisdiction)
		maxKey := fmt.Sprintf("validate.tax_bands.%s.max", jurisdiction)
		minRate, err := decimalSetting(minKey)
		if err != nil {
			return nil, err
		}
		maxRate, err := decimalSetting(maxKey)
		if err != nil {
			return nil, err
		}
		bands[jurisdiction] = validate.TaxBand{Min: minRate, Max: maxRate}
	}
	return bands, nil
}

func buildEngine(store *storage.SQLiteStorage, showProgress bool) (*engine.Engine, error) {
	resolver, err := buildResolver(store)
	if err != nil {
		return nil, err
	}
	matcher, err := buildMatcher()
	if err != nil {
		return nil, err
	}
	validator, err := buildValidator()
	if err != nil {
		return nil, err
	}

	normalizer := normalize.New(viper.GetStringSlice("currencies.allowed"))

	return engine.New(normalizer, resolver, matcher, validator, store, engine.Config{
		ReferenceCurrency: viper.GetString("fx.reference_currency"),
		Workers:           viper.GetInt("engine.workers"),
		ShowProgress:      showProgress,
	}), nil
}

func decimalSetting(key string) (decimal.Decimal, error) {
	raw := viper.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q is not a decimal", common.ErrInvalidConfig, key, raw)
	}
	return d, nil
}
