package enrich

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlEnrichmentCache = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	entity_type    TEXT NOT NULL,
	normalized_key TEXT NOT NULL,
	result         JSONB NOT NULL,
	fetched_at     TIMESTAMPTZ NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_type, normalized_key)
);

CREATE INDEX IF NOT EXISTS enrichment_cache_expires_at_idx ON enrichment_cache (expires_at);
`

const ddlEnrichmentJobs = `
CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id           BIGSERIAL PRIMARY KEY,
	entity_type  TEXT NOT NULL,
	entity_value TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	claimed_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	last_error   TEXT
);

CREATE INDEX IF NOT EXISTS enrichment_jobs_status_idx ON enrichment_jobs (status, created_at);
`

// Migrate creates the enrichment cache and job queue tables if they do not
// already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlEnrichmentCache); err != nil {
		return fmt.Errorf("enrich: migrate cache table: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlEnrichmentJobs); err != nil {
		return fmt.Errorf("enrich: migrate jobs table: %w", err)
	}
	return nil
}
