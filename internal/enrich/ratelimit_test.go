package enrich

import (
	"context"
	"testing"
)

func TestHostLimiter_DefaultsToOnePerSecondWhenNonPositive(t *testing.T) {
	h := newHostLimiter(0)
	if h.every != 1 {
		t.Errorf("every = %v, want 1", h.every)
	}
	h = newHostLimiter(-5)
	if h.every != 1 {
		t.Errorf("every = %v, want 1 for negative input", h.every)
	}
}

func TestHostLimiter_LimiterForIsStablePerHost(t *testing.T) {
	h := newHostLimiter(100)
	a := h.limiterFor("viaf.org")
	b := h.limiterFor("viaf.org")
	if a != b {
		t.Error("limiterFor returned different limiters for the same host")
	}
	c := h.limiterFor("www.wikidata.org")
	if a == c {
		t.Error("limiterFor returned the same limiter for different hosts")
	}
}

func TestHostLimiter_WaitPermitsFirstRequestImmediately(t *testing.T) {
	h := newHostLimiter(100)
	ctx := context.Background()
	if err := h.Wait(ctx, "viaf.org"); err != nil {
		t.Fatalf("Wait returned error on first request: %v", err)
	}
}
