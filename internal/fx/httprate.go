package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/shopspring/decimal"
)

// DefaultAPIBaseURL is the public exchange rate API used when no override
// is configured.
const DefaultAPIBaseURL = "https://api.exchangerate-api.com"

// HTTPRateSource implements the RateSource interface against an
// exchangerate-api style endpoint (GET /v4/latest/{base}). The API serves
// current rates only, so the requested date is not part of the query;
// responses are cached per base currency for the run.
type HTTPRateSource struct {
	httpClient *http.Client
	baseURL    string
	cache      map[string]map[string]decimal.Decimal
	mu         sync.Mutex
	retry      service.RetryOptions
}

type latestResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// NewHTTPRateSource creates a rate source for the given base URL; an empty
// baseURL uses DefaultAPIBaseURL.
func NewHTTPRateSource(baseURL string, timeout time.Duration) *HTTPRateSource {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRateSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: make(map[string]map[string]decimal.Decimal),
		retry: service.RetryOptions{MaxAttempts: 3},
	}
}

// Name identifies this source in logs and resolver bookkeeping.
func (s *HTTPRateSource) Name() string {
	return "exchangerate-api"
}

// LookupRate fetches the current rate for a currency pair. The date is
// accepted for interface compatibility but the upstream API only serves
// latest rates.
func (s *HTTPRateSource) LookupRate(ctx context.Context, from, to string, _ time.Time) (decimal.Decimal, error) {
	rates, err := s.ratesFor(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}

	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s->%s not in API response", common.ErrRateUnavailable, from, to)
	}
	return rate, nil
}

func (s *HTTPRateSource) ratesFor(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	cached, ok := s.cache[base]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	var resp latestResponse
	err := common.WithRetry(ctx, func() error {
		return s.fetchLatest(ctx, base, &resp)
	}, s.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRateSourceDown, err)
	}

	rates := make(map[string]decimal.Decimal, len(resp.Rates))
	for code, num := range resp.Rates {
		rate, convErr := decimal.NewFromString(num.String())
		if convErr != nil {
			continue
		}
		rates[code] = rate
	}

	s.mu.Lock()
	s.cache[base] = rates
	s.mu.Unlock()

	return rates, nil
}

func (s *HTTPRateSource) fetchLatest(ctx context.Context, base string, out *latestResponse) error {
	url := fmt.Sprintf("%s/v4/latest/%s", s.baseURL, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &common.RetryableError{Err: err, Retryable: false}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &common.RetryableError{Err: err, Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return &common.RetryableError{
			Err:       fmt.Errorf("rate API returned HTTP %d for base %s", resp.StatusCode, base),
			Retryable: retryable,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to decode rate API response: %w", err), Retryable: false}
	}
	return nil
}
