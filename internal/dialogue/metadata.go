package dialogue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/schema"
	"github.com/hagaybar/biblioplan/pkg/candidate"
)

// MetadataAnswerer answers METADATA_QUESTION turns directly, with a fixed
// SQL shape rather than a second LLM round-trip — spec calls these
// "answerable from the active subgroup directly ... not the LLM".
type MetadataAnswerer struct {
	pool *pgxpool.Pool
}

// NewMetadataAnswerer returns a MetadataAnswerer backed by pool.
func NewMetadataAnswerer(pool *pgxpool.Pool) *MetadataAnswerer {
	return &MetadataAnswerer{pool: pool}
}

// Answer produces a human-readable answer to question about the active
// subgroup's CandidateSet. "count" is answered from the already-computed
// TotalCount with no new query; "date_span" runs one deterministic query
// against the imprints table for the subgroup's record ids.
func (m *MetadataAnswerer) Answer(ctx context.Context, question MetadataQuestion, set candidate.Set) (string, error) {
	switch question {
	case MetadataCount:
		return fmt.Sprintf("The active subgroup has %d record(s).", set.TotalCount), nil

	case MetadataDateSpan:
		ids := recordIDsOf(set)
		if len(ids) == 0 {
			return "The active subgroup is empty.", nil
		}
		q := fmt.Sprintf(`
			SELECT MIN(%s), MAX(%s)
			FROM %s
			WHERE %s = ANY($1::text[]) AND %s IS NOT NULL`,
			schema.ImprintsDateStart, schema.ImprintsDateEnd,
			schema.TableImprints,
			schema.ImprintsRecordID, schema.ImprintsDateStart)

		var minStart, maxEnd *int
		if err := m.pool.QueryRow(ctx, q, ids).Scan(&minStart, &maxEnd); err != nil {
			return "", fmt.Errorf("dialogue: date span query: %w", err)
		}
		if minStart == nil || maxEnd == nil {
			return "No dated imprints found in the active subgroup.", nil
		}
		return fmt.Sprintf("The active subgroup spans %d to %d.", *minStart, *maxEnd), nil

	default:
		return "", fmt.Errorf("dialogue: unknown metadata question %q", question)
	}
}
