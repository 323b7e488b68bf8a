package enrich

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter hands out a per-host rate.Limiter, creating one on first use.
// Safe for concurrent use.
type hostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    float64 // requests per second per host
}

// newHostLimiter returns a hostLimiter allowing at most one request every
// 1/requestsPerSecond seconds to a given host. requestsPerSecond defaults
// to 1 (i.e. one request per second) when zero.
func newHostLimiter(requestsPerSecond float64) *hostLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &hostLimiter{limiters: make(map[string]*rate.Limiter), every: requestsPerSecond}
}

// Wait blocks until a request to host is permitted, or ctx is cancelled.
func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiterFor(host).Wait(ctx)
}

func (h *hostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.every), 1)
		h.limiters[host] = l
	}
	return l
}
