package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/pkg/enrich"
)

// DefaultTTL is the cache lifetime for a fetched EnrichmentResult, per
// spec.md §4.7's "TTL (default 30 days)".
const DefaultTTL = 30 * 24 * time.Hour

// cacheStore is the write-through cache backing the Enrichment service. The
// authoritative copy is always the database row; Service never holds an
// in-memory copy across requests.
type cacheStore struct {
	pool *pgxpool.Pool
}

func newCacheStore(pool *pgxpool.Pool) *cacheStore {
	return &cacheStore{pool: pool}
}

// get returns the cached Result for (entityType, normalizedKey) if present
// and not expired.
func (c *cacheStore) get(ctx context.Context, entityType, normKey string) (enrich.Result, bool, error) {
	var raw []byte
	var expiresAt time.Time
	err := c.pool.QueryRow(ctx,
		`SELECT result, expires_at FROM enrichment_cache WHERE entity_type = $1 AND normalized_key = $2`,
		entityType, normKey,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return enrich.Result{}, false, nil
	}
	if err != nil {
		return enrich.Result{}, false, fmt.Errorf("enrich: cache get: %w", err)
	}
	if !time.Now().UTC().Before(expiresAt) {
		return enrich.Result{}, false, nil
	}
	var result enrich.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return enrich.Result{}, false, fmt.Errorf("enrich: cache get: unmarshal: %w", err)
	}
	return result, true, nil
}

// put writes result to the cache, overwriting any existing row for the same
// key.
func (c *cacheStore) put(ctx context.Context, normKey string, result enrich.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("enrich: cache put: marshal: %w", err)
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO enrichment_cache (entity_type, normalized_key, result, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, normalized_key)
		DO UPDATE SET result = EXCLUDED.result, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`,
		result.EntityType, normKey, raw, result.FetchedAt, result.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("enrich: cache put: %w", err)
	}
	return nil
}

// reap deletes every expired row and returns the count removed.
func (c *cacheStore) reap(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM enrichment_cache WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("enrich: reap: %w", err)
	}
	return tag.RowsAffected(), nil
}
