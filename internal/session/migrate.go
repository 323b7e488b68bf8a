package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT        PRIMARY KEY,
    phase        TEXT        NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    messages     JSONB       NOT NULL DEFAULT '[]',
    active_subgroup JSONB    NOT NULL DEFAULT 'null',
    user_goals   JSONB       NOT NULL DEFAULT '[]',
    context      JSONB       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions (updated_at);
`

// Migrate creates the sessions table if absent. Idempotent, safe on every
// process start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessions); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}
