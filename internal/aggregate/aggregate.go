// Package aggregate implements the Aggregator: deterministic,
// template-selected aggregation over a concrete set of record ids. The
// user's text never reaches SQL here — only the enumerated Intent picks a
// template, and record ids are always bound as parameters.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/schema"
)

// Intent enumerates the aggregations the Dialogue Engine may request.
type Intent string

const (
	IntentTopPublishers     Intent = "top_publishers"
	IntentDateDistribution  Intent = "date_distribution"
	IntentLanguageBreakdown Intent = "language_breakdown"
	IntentPlaceDistribution Intent = "place_distribution"
	IntentSubjectClusters   Intent = "subject_clusters"
	IntentAgentBreakdown    Intent = "agent_breakdown"
	IntentCountOnly         Intent = "count_only"
)

// chunkThreshold is the largest record-id list bound directly as a SQL IN
// list; larger sets are loaded into a temporary table instead.
const chunkThreshold = 900

// Bin is one grouped result row.
type Bin struct {
	Key       string   `json:"key"`
	Count     int      `json:"count"`
	SampleIDs []string `json:"sample_ids,omitempty"`
}

// Result is the Aggregator's output.
type Result struct {
	Intent Intent `json:"intent"`
	Bins   []Bin  `json:"bins"`
	Total  int    `json:"total"`
}

// template describes one intent's grouping: the table holding the grouping
// key, its join column back to records, and the key column itself.
type template struct {
	table     string
	join      string
	selectKey string
}

var templates = map[Intent]template{
	IntentTopPublishers: {
		table: schema.TableImprints, join: schema.ImprintsRecordID,
		selectKey: schema.ImprintsPublisherNorm,
	},
	IntentDateDistribution: {
		table: schema.TableImprints, join: schema.ImprintsRecordID,
		selectKey: schema.ImprintsDateStart,
	},
	IntentLanguageBreakdown: {
		table: schema.TableLanguages, join: schema.LanguagesRecordID,
		selectKey: schema.LanguagesCode,
	},
	IntentPlaceDistribution: {
		table: schema.TableImprints, join: schema.ImprintsRecordID,
		selectKey: schema.ImprintsPlaceNorm,
	},
	IntentSubjectClusters: {
		table: schema.TableSubjects, join: schema.SubjectsRecordID,
		selectKey: schema.SubjectsNorm,
	},
	IntentAgentBreakdown: {
		table: schema.TableAgents, join: schema.AgentsRecordID,
		selectKey: schema.AgentsNorm,
	},
}

// Aggregator runs aggregation templates against a read-only pool.
type Aggregator struct {
	pool *pgxpool.Pool
}

// New returns an Aggregator backed by pool.
func New(pool *pgxpool.Pool) *Aggregator {
	return &Aggregator{pool: pool}
}

// Aggregate groups recordIDs by intent and returns the resulting bins,
// sorted by count descending then key ascending. recordIDs is bound via a
// temporary table when it exceeds chunkThreshold, and via a plain array
// parameter otherwise — either way it is always bound, never interpolated.
func (a *Aggregator) Aggregate(ctx context.Context, intent Intent, recordIDs []string) (Result, error) {
	if intent == IntentCountOnly {
		return Result{Intent: intent, Total: len(recordIDs)}, nil
	}
	tmpl, ok := templates[intent]
	if !ok {
		return Result{}, fmt.Errorf("aggregate: unknown intent %q", intent)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("aggregate: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	idsSource, err := bindRecordIDs(ctx, tx, recordIDs)
	if err != nil {
		return Result{}, err
	}

	var keyExpr string
	if intent == IntentDateDistribution {
		keyExpr = fmt.Sprintf("((%s / 10) * 10)", tmpl.selectKey)
	} else {
		keyExpr = tmpl.selectKey
	}

	q := fmt.Sprintf(`
		SELECT %s AS bin_key, COUNT(DISTINCT %s.%s) AS bin_count
		FROM %s
		WHERE %s.%s IN (%s)
		  AND %s IS NOT NULL
		GROUP BY %s`,
		keyExpr, tmpl.table, tmpl.join,
		tmpl.table,
		tmpl.table, tmpl.join, idsSource.selectSQL,
		tmpl.selectKey,
		keyExpr)

	rows, err := tx.Query(ctx, q, idsSource.args...)
	if err != nil {
		return Result{}, fmt.Errorf("aggregate: query: %w", err)
	}
	defer rows.Close()

	var bins []Bin
	total := 0
	for rows.Next() {
		var (
			key   any
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return Result{}, fmt.Errorf("aggregate: scan: %w", err)
		}
		label := fmt.Sprintf("%v", key)
		if intent == IntentDateDistribution {
			label = decadeLabel(label)
		}
		bins = append(bins, Bin{Key: label, Count: count})
		total += count
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("aggregate: rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("aggregate: commit: %w", err)
	}

	sortBins(bins)
	return Result{Intent: intent, Bins: bins, Total: total}, nil
}

// sortBins orders bins by count descending, then key ascending, matching
// the deterministic output ordering the Aggregator promises callers.
func sortBins(bins []Bin) {
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].Count != bins[j].Count {
			return bins[i].Count > bins[j].Count
		}
		return bins[i].Key < bins[j].Key
	})
}

// decadeLabel turns a decade-start integer string (e.g. "1680") into a
// human label ("1680s").
func decadeLabel(decadeStart string) string {
	return strings.TrimSuffix(decadeStart, ".0") + "s"
}

// idsSource is a bound relation of record ids to filter against, plus the
// query args needed to reference it.
type idsSource struct {
	// selectSQL is the SQL fragment placed inside `IN (...)`.
	selectSQL string
	args      []any
}

// bindRecordIDs materializes recordIDs for use in a WHERE ... IN (...)
// clause. Below chunkThreshold it binds a single array parameter via
// `SELECT unnest($1::text[])`. Above it, it loads the ids into a
// session-local temporary table (dropped automatically at transaction
// end) and selects from that instead, avoiding a single enormous
// parameter array.
func bindRecordIDs(ctx context.Context, tx pgx.Tx, recordIDs []string) (idsSource, error) {
	if len(recordIDs) <= chunkThreshold {
		return idsSource{selectSQL: "SELECT unnest($1::text[])", args: []any{recordIDs}}, nil
	}

	const tmpTable = "aggregate_record_ids"
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (id text PRIMARY KEY) ON COMMIT DROP", tmpTable)); err != nil {
		return idsSource{}, fmt.Errorf("aggregate: create temp table: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s SELECT unnest($1::text[])", tmpTable), recordIDs); err != nil {
		return idsSource{}, fmt.Errorf("aggregate: populate temp table: %w", err)
	}
	return idsSource{selectSQL: fmt.Sprintf("SELECT id FROM %s", tmpTable)}, nil
}
