/*
refresher.go - Background rate-table refresh

PURPOSE:
  Keeps the converter's rate table warm on a fixed cadence so conversational
  request paths almost never pay for a reload. The converter stays correct
  without it (it refreshes lazily on staleness), the refresher just moves
  the latency off the request path.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Refreshes once immediately on Start
  - Redundant refreshes are harmless (overwrite-only, last writer wins)

USAGE:
  refresher := currency.NewRefresher(converter, 30*time.Minute, logger)
  refresher.Start()
  // ... on shutdown
  refresher.Stop()
*/
package currency

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher periodically reloads a Converter's rate table.
type Refresher struct {
	converter *Converter
	interval  time.Duration
	logger    *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRefresher(converter *Converter, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		converter: converter,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Start begins the background refresh loop.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		return
	}
	r.stop = make(chan struct{})
	r.ticker = time.NewTicker(r.interval)
	r.wg.Add(1)
	go r.run()

	r.logger.Info("rate refresher started", "interval", r.interval.String())
}

// Stop halts the loop and waits for the in-flight refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.stop)
	r.wg.Wait()
	r.ticker = nil
	r.logger.Info("rate refresher stopped")
}

func (r *Refresher) run() {
	defer r.wg.Done()

	r.converter.RefreshNow(context.Background())

	for {
		select {
		case <-r.ticker.C:
			r.converter.RefreshNow(context.Background())
		case <-r.stop:
			return
		}
	}
}
