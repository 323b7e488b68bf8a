// Package query implements the Executor: it runs Stage B's compiled SQL
// against the read-only index database, assembles Candidates with their
// supporting Evidence, and persists each run under a timestamped directory.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/pkg/candidate"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

// Executor runs compiled plans against a read-only pgxpool.Pool. The pool
// passed to New must never be used for writes at request time; the index
// database is populated exclusively by internal/index.
type Executor struct {
	pool *pgxpool.Pool
}

// New returns an Executor backed by pool.
func New(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute compiles plan, runs it plus its COUNT(*) companion, and returns
// the resulting CandidateSet. queryText is the original free-text question,
// carried through for persistence and for the Plan Cache key upstream.
func (e *Executor) Execute(ctx context.Context, queryText string, plan queryplan.QueryPlan) (candidate.Set, error) {
	compiled, err := planner.Compile(plan)
	if err != nil {
		return candidate.Set{}, err
	}
	countCompiled, err := planner.CompileCount(plan)
	if err != nil {
		return candidate.Set{}, err
	}

	limit := plan.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := e.pool.Query(ctx, compiled.SQL, compiled.Args...)
	if err != nil {
		return candidate.Set{}, fmt.Errorf("query: execute: %w", err)
	}
	candidates, err := collectCandidates(rows, compiled, plan)
	if err != nil {
		return candidate.Set{}, fmt.Errorf("query: collect rows: %w", err)
	}

	truncated := false
	if len(candidates) > limit {
		candidates = candidates[:limit]
		truncated = true
	}

	var totalCount int
	if err := e.pool.QueryRow(ctx, countCompiled.SQL, countCompiled.Args...).Scan(&totalCount); err != nil {
		return candidate.Set{}, fmt.Errorf("query: count: %w", err)
	}

	rationale := strings.Join(compiled.RationaleParts, " AND ")
	for i := range candidates {
		candidates[i].MatchRationale = rationale
	}

	return candidate.Set{
		QueryText:   queryText,
		QueryPlan:   plan,
		SQLExecuted: compiled.SQL,
		Candidates:  candidates,
		TotalCount:  totalCount,
		Truncated:   truncated,
	}, nil
}

// collectCandidates scans rows (mms_id plus every planner.ColumnInfo column
// in order) and groups them into one Candidate per record_id, deduplicating
// Evidence by (db_column, value) within a candidate — a record with more
// than one matching child row (e.g. two qualifying imprints) produces
// multiple SQL rows that collapse into a single Candidate here.
//
// Row order is preserved exactly as the compiled SQL's ORDER BY produced it
// when plan specifies one (spec.md §4.4: "If the QueryPlan specifies an
// order, honor it"); only the default case — no explicit plan.Order — is
// re-sorted by record_id here, matching compile.go's own fallback ORDER BY
// mms_id ASC.
func collectCandidates(rows pgx.Rows, compiled planner.Compiled, plan queryplan.QueryPlan) ([]candidate.Candidate, error) {
	defer rows.Close()

	order := []string{}
	byID := map[string]*candidate.Candidate{}
	seenEvidence := map[string]map[string]bool{}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			continue
		}
		recordID, _ := vals[0].(string)
		c, ok := byID[recordID]
		if !ok {
			c = &candidate.Candidate{RecordID: recordID}
			if title, ok := vals[1].(string); ok {
				c.Title = title
			}
			byID[recordID] = c
			seenEvidence[recordID] = map[string]bool{}
			order = append(order, recordID)
		}

		byAlias := map[string]any{}
		for i, col := range compiled.Columns {
			byAlias[col.Alias] = vals[i+2]
		}
		appendEvidence(c, compiled.Columns, byAlias, seenEvidence[recordID])
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]candidate.Candidate, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	if plan.Order == nil {
		sort.Slice(result, func(i, j int) bool { return result[i].RecordID < result[j].RecordID })
	}
	return result, nil
}

// appendEvidence turns one row's columns into Evidence entries on c,
// skipping any (db_column, value) pair already recorded for this candidate.
func appendEvidence(c *candidate.Candidate, columns []planner.ColumnInfo, byAlias map[string]any, seen map[string]bool) {
	byField := map[string]map[planner.ColumnKind]any{}
	for _, col := range columns {
		v := byAlias[col.Alias]
		if v == nil {
			continue
		}
		if byField[string(col.Field)] == nil {
			byField[string(col.Field)] = map[planner.ColumnKind]any{}
		}
		byField[string(col.Field)][col.Kind] = v
	}

	for _, col := range columns {
		if col.Kind != planner.ColumnRaw && col.Kind != planner.ColumnNorm {
			continue
		}
		// A field with both raw and norm columns reports one Evidence entry
		// keyed on the raw value; a field with only a norm column (agent,
		// subject) reports on that.
		if col.Kind == planner.ColumnNorm {
			if _, hasRaw := byField[string(col.Field)][planner.ColumnRaw]; hasRaw {
				continue
			}
		}

		value := fmt.Sprint(byAlias[col.Alias])
		key := col.DBColumn + "=" + value
		if seen[key] {
			continue
		}
		seen[key] = true

		ev := candidate.Evidence{
			FieldPath: col.MARCPath,
			DBColumn:  col.DBColumn,
			Value:     value,
		}
		if norm, ok := byField[string(col.Field)][planner.ColumnNorm]; ok && norm != nil {
			s := fmt.Sprint(norm)
			ev.NormalizedValue = &s
		}
		if conf, ok := byField[string(col.Field)][planner.ColumnConfidence]; ok && conf != nil {
			if f, ok := conf.(float64); ok {
				ev.Confidence = &f
			}
		}
		c.Evidence = append(c.Evidence, ev)
	}
}
