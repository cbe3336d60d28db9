package currency_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/warp/ledgerflow/currency"
)

func TestHTTPRateService_GetRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("base"); got != "EUR" {
			t.Errorf("base = %q, want EUR", got)
		}
		if got := r.URL.Query().Get("symbols"); got != "USD,GBP" {
			t.Errorf("symbols = %q, want USD,GBP", got)
		}
		w.Write([]byte(`{"base":"EUR","rates":{"USD":1.08,"GBP":0.85}}`))
	}))
	defer srv.Close()

	svc := currency.NewHTTPRateService(srv.URL, nil)
	rates, err := svc.GetRates(context.Background(), "EUR", []string{"USD", "GBP"})
	if err != nil {
		t.Fatalf("GetRates: %v", err)
	}
	if !rates["USD"].Equal(dec("1.08")) || !rates["GBP"].Equal(dec("0.85")) {
		t.Fatalf("unexpected rates: %v", rates)
	}
}

func TestHTTPRateService_PairRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CHF per 1 EUR
		w.Write([]byte(`{"base":"EUR","rates":{"CHF":0.93}}`))
	}))
	defer srv.Close()

	svc := currency.NewHTTPRateService(srv.URL, nil)
	rate, err := svc.PairRate(context.Background(), "CHF", "EUR")
	if err != nil {
		t.Fatalf("PairRate: %v", err)
	}
	if !rate.Equal(dec("0.93")) {
		t.Fatalf("rate = %s, want 0.93", rate)
	}
}

func TestHTTPRateService_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := currency.NewHTTPRateService(srv.URL, nil)
	if _, err := svc.GetRates(context.Background(), "EUR", []string{"USD"}); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
