package currency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATOR INTERFACE
// =============================================================================

// RateService is the external rate provider. Implementations wrap whatever
// upstream the deployment uses; the Converter only assumes these two calls.
type RateService interface {
	// GetRates returns, for each requested currency, the number of its units
	// per 1 unit of baseCurrency. Missing currencies may be absent from the
	// returned map.
	GetRates(ctx context.Context, baseCurrency string, currencies []string) (map[string]decimal.Decimal, error)

	// PairRate returns the number of `from` units per 1 `to` unit.
	PairRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Clock supplies the current time. Injectable so tests drive table refresh
// deterministically.
type Clock func() time.Time

// =============================================================================
// CONVERTER
// =============================================================================

// Options configures a Converter. Zero durations fall back to defaults.
type Options struct {
	BaseCurrency    string
	Currencies      []string      // currencies kept warm in the rate table
	RefreshInterval time.Duration // rate table refresh cadence (default 30m)
	SnapshotTTL     time.Duration // pair-rate snapshot cache TTL (default 3m)
	LookupTimeout   time.Duration // bound on tier-2 remote lookups (default 5s)
	Clock           Clock
	Logger          *slog.Logger
}

// Converter resolves exchange rates with a three-tier fallback:
//
//  1. In-process rate table against the base currency, refreshed on a fixed
//     interval, overlaid with a short-lived snapshot cache so bursts of
//     near-simultaneous calls share one lookup.
//  2. Remote pair lookup through the RateService, bounded by LookupTimeout.
//  3. Identity rate (1), logged as a degraded computation.
//
// Rate and Convert are total: they never return an error and never hang the
// conversational turn. A same-currency conversion short-circuits with zero
// I/O.
type Converter struct {
	svc  RateService
	opts Options

	snapshot *gocache.Cache

	mu          sync.RWMutex
	table       map[string]decimal.Decimal // units per 1 base unit
	lastRefresh time.Time
}

// New creates a Converter around the given rate service.
func New(svc RateService, opts Options) *Converter {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Minute
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 3 * time.Minute
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Converter{
		svc:      svc,
		opts:     opts,
		snapshot: gocache.New(opts.SnapshotTTL, 2*opts.SnapshotTTL),
		table:    make(map[string]decimal.Decimal),
	}
}

// BaseCurrency returns the canonical accounting currency.
func (c *Converter) BaseCurrency() string { return c.opts.BaseCurrency }

// Rate returns the number of `from` units per 1 `to` unit. from == to is
// always exactly 1 with no I/O.
func (c *Converter) Rate(ctx context.Context, from, to string) decimal.Decimal {
	if from == to {
		return one
	}

	key := from + "/" + to
	if cached, ok := c.snapshot.Get(key); ok {
		return cached.(decimal.Decimal)
	}

	// Tier 1: cross rate from the in-process table.
	if rate, ok := c.tableRate(ctx, from, to); ok {
		c.snapshot.Set(key, rate, gocache.DefaultExpiration)
		return rate
	}

	// Tier 2: remote lookup for the specific pair, bounded.
	lookupCtx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()
	rate, err := c.svc.PairRate(lookupCtx, from, to)
	if err == nil && rate.IsPositive() {
		c.snapshot.Set(key, rate, gocache.DefaultExpiration)
		return rate
	}

	// Tier 3: identity. Degraded, never an error.
	c.opts.Logger.Warn("exchange rate unavailable, using identity rate",
		"from", from, "to", to, "err", err)
	return one
}

// Convert converts amount from one currency to another using Rate. The
// same-currency case returns amount unchanged.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	if from == to {
		return amount
	}
	return amount.DivRound(c.Rate(ctx, from, to), 6)
}

// MoneyFromNative resolves one native-per-base rate for currency and returns
// the Money carrying both amounts. Callers computing several figures for one
// record (principal plus tax) resolve the rate once and reuse it.
func (c *Converter) MoneyFromNative(ctx context.Context, amount decimal.Decimal, nativeCurrency string) Money {
	return NewMoney(amount, nativeCurrency, c.Rate(ctx, nativeCurrency, c.opts.BaseCurrency))
}

// =============================================================================
// RATE TABLE (tier 1)
// =============================================================================

// RefreshNow reloads the rate table immediately, regardless of staleness.
// The background refresher uses it to keep the table warm so request paths
// rarely pay for a reload.
func (c *Converter) RefreshNow(ctx context.Context) {
	c.mu.Lock()
	c.lastRefresh = time.Time{}
	c.mu.Unlock()
	c.refreshIfStale(ctx)
}

func (c *Converter) tableRate(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	c.refreshIfStale(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	fromPerBase, okFrom := c.perBase(from)
	toPerBase, okTo := c.perBase(to)
	if !okFrom || !okTo || !toPerBase.IsPositive() {
		return decimal.Decimal{}, false
	}
	// table[x] = x units per base unit, so from-per-to = table[from]/table[to].
	return fromPerBase.DivRound(toPerBase, 8), true
}

func (c *Converter) perBase(currency string) (decimal.Decimal, bool) {
	if currency == c.opts.BaseCurrency {
		return one, true
	}
	rate, ok := c.table[currency]
	return rate, ok && rate.IsPositive()
}

// refreshIfStale reloads the table when the refresh interval has elapsed.
// Refresh is overwrite-only (last writer wins), so concurrent readers never
// observe a torn table and redundant refreshes are harmless.
func (c *Converter) refreshIfStale(ctx context.Context) {
	now := c.opts.Clock()

	c.mu.RLock()
	stale := now.Sub(c.lastRefresh) >= c.opts.RefreshInterval
	c.mu.RUnlock()
	if !stale || len(c.opts.Currencies) == 0 {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()
	rates, err := c.svc.GetRates(lookupCtx, c.opts.BaseCurrency, c.opts.Currencies)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Mark the attempt even on failure; tier 2 covers the gap until the next
	// interval instead of hammering a down service on every call.
	c.lastRefresh = now
	if err != nil {
		c.opts.Logger.Warn("rate table refresh failed", "base", c.opts.BaseCurrency, "err", err)
		return
	}
	fresh := make(map[string]decimal.Decimal, len(rates))
	for cur, rate := range rates {
		if rate.IsPositive() {
			fresh[cur] = rate
		}
	}
	c.table = fresh
}

var one = decimal.New(1, 0)
