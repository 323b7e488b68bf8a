package enrich

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultReapInterval is how often the background reaper sweeps expired
// cache rows.
const defaultReapInterval = 1 * time.Hour

// Reaper periodically deletes expired enrichment_cache rows using the same
// Start/Stop/ticker-loop shape used elsewhere in this codebase for
// background sweeps, applied here to cache expiry instead of transcript
// flushing.
type Reaper struct {
	store    *cacheStore
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// newReaper builds a Reaper over store. Interval defaults to
// defaultReapInterval when zero.
func newReaper(store *cacheStore, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = defaultReapInterval
	}
	return &Reaper{store: store, interval: interval, done: make(chan struct{})}
}

// Start begins periodic reaping in a background goroutine. The goroutine
// runs until Stop is called or ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop halts the reaper loop. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Reaper) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			n, err := r.store.reap(ctx)
			if err != nil {
				slog.Warn("enrichment cache reap failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("enrichment cache reaped", "rows", n)
			}
		}
	}
}
