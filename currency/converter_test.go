package currency_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledgerflow/currency"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeRateService struct {
	rates     map[string]decimal.Decimal
	pairRates map[string]decimal.Decimal
	err       error

	getRatesCalls int
	pairRateCalls int
}

func (f *fakeRateService) GetRates(_ context.Context, _ string, _ []string) (map[string]decimal.Decimal, error) {
	f.getRatesCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

func (f *fakeRateService) PairRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	f.pairRateCalls++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	if r, ok := f.pairRates[from+"/"+to]; ok {
		return r, nil
	}
	return decimal.Decimal{}, errors.New("pair not found")
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConverter(svc *fakeRateService, clk *fakeClock) *currency.Converter {
	return currency.New(svc, currency.Options{
		BaseCurrency:    "EUR",
		Currencies:      []string{"USD", "GBP"},
		RefreshInterval: 30 * time.Minute,
		SnapshotTTL:     3 * time.Minute,
		Clock:           clk.Now,
		Logger:          quietLogger(),
	})
}

// =============================================================================
// SHORT-CIRCUIT AND TABLE TIERS
// =============================================================================

func TestConvert_SameCurrency_NoExternalCalls(t *testing.T) {
	svc := &fakeRateService{err: errors.New("must not be called")}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)

	got := c.Convert(context.Background(), dec("42.50"), "USD", "USD")

	assert.True(t, got.Equal(dec("42.50")))
	assert.Zero(t, svc.getRatesCalls)
	assert.Zero(t, svc.pairRateCalls)
	assert.True(t, c.Rate(context.Background(), "GBP", "GBP").Equal(dec("1")))
}

func TestRate_FromRefreshedTable(t *testing.T) {
	// GIVEN: the service reports 1.10 USD per EUR
	svc := &fakeRateService{rates: map[string]decimal.Decimal{"USD": dec("1.10")}}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)
	clk.Advance(time.Hour) // force first refresh

	rate := c.Rate(context.Background(), "USD", "EUR")

	require.True(t, rate.Equal(dec("1.10")), "got %s", rate)
	// 110 USD at 1.10 USD-per-EUR is 100 EUR
	got := c.Convert(context.Background(), dec("110"), "USD", "EUR")
	assert.True(t, got.Equal(dec("100")), "got %s", got)
}

func TestRate_CrossRateThroughBase(t *testing.T) {
	svc := &fakeRateService{rates: map[string]decimal.Decimal{
		"USD": dec("2"),
		"GBP": dec("0.5"),
	}}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)
	clk.Advance(time.Hour)

	// 2 USD per EUR and 0.5 GBP per EUR makes 4 USD per GBP.
	rate := c.Rate(context.Background(), "USD", "GBP")
	assert.True(t, rate.Equal(dec("4")), "got %s", rate)
}

func TestRate_SnapshotCache_CollapsesRepeatLookups(t *testing.T) {
	svc := &fakeRateService{rates: map[string]decimal.Decimal{"USD": dec("1.10")}}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)
	clk.Advance(time.Hour)

	for i := 0; i < 5; i++ {
		c.Rate(context.Background(), "USD", "EUR")
	}

	assert.Equal(t, 1, svc.getRatesCalls, "near-simultaneous calls should share one refresh")
}

func TestRate_TableRefreshesAfterInterval(t *testing.T) {
	svc := &fakeRateService{rates: map[string]decimal.Decimal{"USD": dec("1.10"), "GBP": dec("0.9")}}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)

	clk.Advance(time.Hour)
	c.Rate(context.Background(), "USD", "EUR")
	require.Equal(t, 1, svc.getRatesCalls)

	clk.Advance(31 * time.Minute)
	c.Rate(context.Background(), "GBP", "EUR") // different pair, bypasses snapshot
	assert.Equal(t, 2, svc.getRatesCalls)
}

// =============================================================================
// REMOTE AND IDENTITY TIERS
// =============================================================================

func TestRate_FallsBackToPairLookup(t *testing.T) {
	// CHF is not in the warm table; tier 2 must answer.
	svc := &fakeRateService{
		rates:     map[string]decimal.Decimal{"USD": dec("1.10")},
		pairRates: map[string]decimal.Decimal{"CHF/EUR": dec("0.95")},
	}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)
	clk.Advance(time.Hour)

	rate := c.Rate(context.Background(), "CHF", "EUR")

	assert.True(t, rate.Equal(dec("0.95")), "got %s", rate)
	assert.Equal(t, 1, svc.pairRateCalls)
}

func TestRate_DegradedService_IdentityNeverError(t *testing.T) {
	svc := &fakeRateService{err: errors.New("rate service down")}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)
	clk.Advance(time.Hour)

	rate := c.Rate(context.Background(), "USD", "EUR")
	assert.True(t, rate.Equal(dec("1")), "degraded lookups must fall back to identity")

	got := c.Convert(context.Background(), dec("500"), "USD", "EUR")
	assert.True(t, got.Equal(dec("500")))
}

// =============================================================================
// MONEY
// =============================================================================

func TestMoneyFromNative_BaseCurrencyInvariant(t *testing.T) {
	svc := &fakeRateService{err: errors.New("must not be called")}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)

	m := c.MoneyFromNative(context.Background(), dec("500"), "EUR")

	assert.Equal(t, "EUR", m.NativeCurrency)
	assert.True(t, m.ExchangeRate.Equal(dec("1")))
	assert.True(t, m.BaseAmount.Equal(m.NativeAmount))
	assert.Zero(t, svc.getRatesCalls+svc.pairRateCalls)
}

func TestMoneyFromNative_ForeignCurrency(t *testing.T) {
	svc := &fakeRateService{rates: map[string]decimal.Decimal{"USD": dec("1.25")}}
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := newConverter(svc, clk)
	clk.Advance(time.Hour)

	m := c.MoneyFromNative(context.Background(), dec("250"), "USD")

	assert.True(t, m.ExchangeRate.Equal(dec("1.25")))
	assert.True(t, m.BaseAmount.Equal(dec("200")), "got %s", m.BaseAmount)
}

func TestNewMoney_NonPositiveRateTreatedAsIdentity(t *testing.T) {
	m := currency.NewMoney(dec("10"), "USD", decimal.Decimal{})
	assert.True(t, m.ExchangeRate.Equal(dec("1")))
	assert.True(t, m.BaseAmount.Equal(dec("10")))
}
