// Package enrich implements the Enrichment service (spec.md §4.7): a
// write-through, TTL-expiring cache in front of a small set of external
// knowledge-base sources, with per-entity singleflight dedup, a per-source
// circuit breaker, and a per-host rate limiter.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/pkg/enrich"
)

// Service implements enrich.Enricher against a configured set of sources,
// tried in registration order.
type Service struct {
	cache    *cacheStore
	sources  []*source
	breakers map[enrich.Source]*resilience.CircuitBreaker
	limiter  *hostLimiter
	group    singleflight.Group
	ttl      time.Duration
	reaper   *Reaper
}

// Config configures a Service.
type Config struct {
	// TTL is the cache lifetime for a fetched result. Defaults to DefaultTTL
	// when zero.
	TTL time.Duration

	// RequestsPerSecondPerHost bounds outbound requests to any one source
	// host. Defaults to 1 (one request per second) when zero, matching
	// spec.md's "at least 1s between outbound requests to the same host."
	RequestsPerSecondPerHost float64

	// Breaker configures the per-source circuit breaker. Name is
	// overridden per source.
	Breaker resilience.CircuitBreakerConfig

	// ReapInterval is how often the background reaper sweeps expired cache
	// rows. Defaults to defaultReapInterval when zero.
	ReapInterval time.Duration
}

// New builds a Service backed by pool's enrichment_cache/enrichment_jobs
// tables, consulting sources in order. Call Start to begin the background
// cache reaper.
func New(pool *pgxpool.Pool, sources []*source, cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store := newCacheStore(pool)
	breakers := make(map[enrich.Source]*resilience.CircuitBreaker, len(sources))
	for _, src := range sources {
		bc := cfg.Breaker
		bc.Name = string(src.name)
		breakers[src.name] = resilience.NewCircuitBreaker(bc)
	}
	return &Service{
		cache:    store,
		sources:  sources,
		breakers: breakers,
		limiter:  newHostLimiter(cfg.RequestsPerSecondPerHost),
		ttl:      ttl,
		reaper:   newReaper(store, cfg.ReapInterval),
	}
}

// Start begins the background cache reaper. Call Stop to halt it during
// shutdown.
func (s *Service) Start(ctx context.Context) { s.reaper.Start(ctx) }

// Stop halts the background cache reaper.
func (s *Service) Stop() { s.reaper.Stop() }

// Enrich implements enrich.Enricher: cache, then (if authorityID is known)
// authority cross-reference, then name search with disambiguation. This
// entry point has no authority id to offer; EnrichWithAuthorityID is used
// by callers that have extracted one from a record's MARC $0.
func (s *Service) Enrich(ctx context.Context, entityType, entityValue string) (enrich.Result, error) {
	return s.EnrichWithAuthorityID(ctx, entityType, entityValue, "")
}

// EnrichWithAuthorityID runs the full lookup order from spec.md §4.7: cache
// hit, then authority-id cross-reference (skipped when authorityID is
// empty), then name search. At most one lookup per (entityType,
// normalizedKey) runs concurrently; other callers attach to the in-flight
// result via singleflight.
func (s *Service) EnrichWithAuthorityID(ctx context.Context, entityType, entityValue, authorityID string) (enrich.Result, error) {
	key := singleflightKey(entityType, entityValue)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.lookup(ctx, entityType, entityValue, authorityID)
	})
	if err != nil {
		return enrich.Result{}, err
	}
	return v.(enrich.Result), nil
}

func (s *Service) lookup(ctx context.Context, entityType, entityValue, authorityID string) (enrich.Result, error) {
	normKey := normalizedKey(entityValue)

	if cached, ok, err := s.cache.get(ctx, entityType, normKey); err != nil {
		slog.Warn("enrichment cache read failed, falling through to sources", "error", err)
	} else if ok {
		return cached, nil
	}

	if authorityID != "" {
		for _, src := range s.sources {
			entity, ok, err := s.call(ctx, src, func() (kbEntity, bool, error) {
				return src.lookupByXref(ctx, authorityID)
			})
			if err != nil {
				slog.Warn("enrichment xref lookup failed", "source", src.name, "error", err)
				continue
			}
			if ok {
				result := s.buildResult(entityType, entityValue, normKey, src.name, entity)
				s.save(ctx, normKey, result)
				return result, nil
			}
		}
	}

	for _, src := range s.sources {
		entity, ok, err := s.call(ctx, src, func() (kbEntity, bool, error) {
			return src.lookupByName(ctx, entityType, entityValue)
		})
		if err != nil {
			slog.Warn("enrichment name search failed", "source", src.name, "error", err)
			continue
		}
		if ok {
			result := s.buildResult(entityType, entityValue, normKey, src.name, entity)
			s.save(ctx, normKey, result)
			return result, nil
		}
	}

	miss := enrich.Miss(entityType, entityValue, normKey)
	now := time.Now().UTC()
	miss.FetchedAt = now
	miss.ExpiresAt = now.Add(s.ttl)
	s.save(ctx, normKey, miss)
	return miss, nil
}

// call enforces the per-host rate limit and the source's circuit breaker
// around fn. A rate-limit wait cancellation or an open breaker surfaces as
// an error so the caller falls through to the next source, never raises.
func (s *Service) call(ctx context.Context, src *source, fn func() (kbEntity, bool, error)) (kbEntity, bool, error) {
	if err := s.limiter.Wait(ctx, src.host); err != nil {
		return kbEntity{}, false, fmt.Errorf("enrich: %s: rate limit wait: %w", src.name, err)
	}

	breaker, ok := s.breakers[src.name]
	if !ok {
		return kbEntity{}, false, fmt.Errorf("enrich: no circuit breaker configured for source %q", src.name)
	}

	var entity kbEntity
	var found bool
	err := breaker.Execute(func() error {
		e, f, ferr := fn()
		if ferr != nil {
			return ferr
		}
		entity, found = e, f
		return nil
	})
	if err != nil {
		return kbEntity{}, false, err
	}
	return entity, found, nil
}

func (s *Service) buildResult(entityType, entityValue, normKey string, srcName enrich.Source, entity kbEntity) enrich.Result {
	now := time.Now().UTC()
	result := enrich.Result{
		EntityType:    entityType,
		EntityValue:   entityValue,
		NormalizedKey: normKey,
		PersonInfo:    entity.PersonInfo,
		PlaceInfo:     entity.PlaceInfo,
		Label:         entity.Label,
		Description:   entity.Description,
		Source:        srcName,
		Confidence:    entity.Score,
		Raw:           entity.Raw,
		FetchedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	switch srcName {
	case enrich.SourceWikidata:
		result.WikidataID = entity.ID
	case enrich.SourceVIAF:
		result.VIAFID = entity.ID
	case enrich.SourceLOC:
		result.LOCID = entity.ID
	case enrich.SourceNLI:
		result.NLIID = entity.ID
	}
	return result
}

func (s *Service) save(ctx context.Context, normKey string, result enrich.Result) {
	if err := s.cache.put(ctx, normKey, result); err != nil {
		slog.Warn("enrichment cache write failed", "error", err)
	}
}
