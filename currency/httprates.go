/*
httprates.go - Remote rate service client

PURPOSE:
  RateService implementation against a frankfurter-style JSON rates API:

      GET {base}/latest?base=EUR&symbols=USD,GBP
      -> {"base":"EUR","rates":{"USD":1.08,"GBP":0.85}}

  The response reports `to` units per 1 `base` unit; the converter's table
  convention (units of currency per 1 base unit) matches it directly.

  Callers bound these lookups with a context deadline; this client adds no
  timeout of its own.
*/
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// HTTPRateService fetches exchange rates from a remote JSON API.
type HTTPRateService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRateService creates a client for the rates API at baseURL.
func NewHTTPRateService(baseURL string, client *http.Client) *HTTPRateService {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRateService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// GetRates returns units of each requested currency per 1 baseCurrency unit.
func (s *HTTPRateService) GetRates(ctx context.Context, baseCurrency string, currencies []string) (map[string]decimal.Decimal, error) {
	q := url.Values{}
	q.Set("base", baseCurrency)
	q.Set("symbols", strings.Join(currencies, ","))

	parsed, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return parsed.Rates, nil
}

// PairRate returns `from` units per 1 `to` unit.
func (s *HTTPRateService) PairRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("base", to)
	q.Set("symbols", from)

	parsed, err := s.fetch(ctx, q)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := parsed.Rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate service returned no rate for %s/%s", from, to)
	}
	return rate, nil
}

func (s *HTTPRateService) fetch(ctx context.Context, query url.Values) (*ratesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/latest?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var parsed ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rate service response malformed: %w", err)
	}
	return &parsed, nil
}

var _ RateService = (*HTTPRateService)(nil)
