package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoJobs is returned by ClaimNext when the queue has no pending jobs.
var ErrNoJobs = errors.New("enrich: no pending jobs")

// Job is one bulk/pre-enrichment queue entry.
type Job struct {
	ID          int64
	EntityType  string
	EntityValue string
}

// JobQueue is the bulk/pre-enrichment job queue (spec.md §4.7: "A job queue
// table exists for bulk/pre-enrichment but on-demand is the default path").
// An on-demand Enrich call never goes through this queue; it exists for an
// optional background worker that pre-warms the cache.
type JobQueue struct {
	pool *pgxpool.Pool
}

// NewJobQueue returns a JobQueue backed by pool.
func NewJobQueue(pool *pgxpool.Pool) *JobQueue {
	return &JobQueue{pool: pool}
}

// Enqueue adds a pending job for (entityType, entityValue).
func (q *JobQueue) Enqueue(ctx context.Context, entityType, entityValue string) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO enrichment_jobs (entity_type, entity_value) VALUES ($1, $2)`,
		entityType, entityValue)
	if err != nil {
		return fmt.Errorf("enrich: enqueue: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending job, marking it 'claimed'
// so a second worker does not pick it up concurrently.
func (q *JobQueue) ClaimNext(ctx context.Context) (Job, error) {
	var job Job
	err := q.pool.QueryRow(ctx, `
		UPDATE enrichment_jobs
		SET status = 'claimed', claimed_at = now()
		WHERE id = (
			SELECT id FROM enrichment_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, entity_type, entity_value`,
	).Scan(&job.ID, &job.EntityType, &job.EntityValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNoJobs
	}
	if err != nil {
		return Job{}, fmt.Errorf("enrich: claim next job: %w", err)
	}
	return job, nil
}

// MarkDone marks job as completed.
func (q *JobQueue) MarkDone(ctx context.Context, jobID int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE enrichment_jobs SET status = 'done', completed_at = now() WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("enrich: mark job done: %w", err)
	}
	return nil
}

// MarkFailed marks job as failed with the given error message.
func (q *JobQueue) MarkFailed(ctx context.Context, jobID int64, lastErr error) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE enrichment_jobs SET status = 'failed', completed_at = now(), last_error = $2 WHERE id = $1`,
		jobID, lastErr.Error())
	if err != nil {
		return fmt.Errorf("enrich: mark job failed: %w", err)
	}
	return nil
}
