// Package planner implements the two-stage Plan Compiler: Stage A delegates
// NL-to-QueryPlan translation to an external structured-output provider
// (see the llmplan subpackage); Stage B, in this file, is the deterministic,
// total function from a validated QueryPlan to parameterized SQL.
package planner

import (
	"fmt"
	"strings"

	"github.com/hagaybar/biblioplan/internal/schema"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

// ColumnKind distinguishes the role a selected column plays when the
// Executor rebuilds Evidence from a result row.
type ColumnKind string

const (
	ColumnRaw        ColumnKind = "raw"
	ColumnNorm       ColumnKind = "norm"
	ColumnConfidence ColumnKind = "confidence"
	ColumnMethod     ColumnKind = "method"
)

// ColumnInfo describes one projected column beyond record_id: the alias it
// is selected under (stable, collision-free across joined tables) and
// enough Schema Contract metadata for the Executor to build an Evidence
// entry without re-deriving it from the raw column name.
type ColumnInfo struct {
	Alias      string
	Field      schema.FilterField
	Kind       ColumnKind
	MARCPath   string
	DBColumn   string
}

// Compiled is the output of Stage B: a parameterized SQL statement ready to
// execute against the index database, the positional arguments bound to its
// $N placeholders, and the metadata needed to turn result rows into
// Evidence.
type Compiled struct {
	SQL            string
	Args           []any
	RationaleParts []string
	Columns        []ColumnInfo
}

// whereClause is the part of Stage B shared between Compile (full row
// projection) and CompileCount (COUNT(*) over the identical predicate): the
// FROM/JOIN/WHERE skeleton, its bound arguments, and the per-filter
// rationale fragments.
type whereClause struct {
	joins      []string
	conditions []string
	args       []any
	rationale  []string
	columns    []ColumnInfo
}

func buildWhere(plan queryplan.QueryPlan, projectColumns bool) (whereClause, error) {
	var (
		w         whereClause
		seenJoins = map[string]bool{}
		selectSet = map[string]bool{}
	)
	bind := func(v any) string {
		w.args = append(w.args, v)
		return fmt.Sprintf("$%d", len(w.args))
	}
	addSelect := func(spec schema.FieldSpec, dbCol string, kind ColumnKind) {
		if !projectColumns || dbCol == "" {
			return
		}
		alias := spec.Table + "_" + dbCol
		if selectSet[alias] {
			return
		}
		selectSet[alias] = true
		w.columns = append(w.columns, ColumnInfo{Alias: alias, Field: spec.Field, Kind: kind, MARCPath: spec.MARCPath, DBColumn: dbCol})
	}

	for _, f := range plan.Filters {
		spec, ok := schema.Lookup(f.Field)
		if !ok {
			return whereClause{}, &PlanUnsupportedError{Field: string(f.Field)}
		}

		if spec.Table != schema.TableRecords && !seenJoins[spec.Table] {
			seenJoins[spec.Table] = true
			w.joins = append(w.joins, fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
				spec.Table, spec.Table, spec.JoinOn, schema.TableRecords, schema.RecordsMMSID))
		}
		col := spec.Table + "." + spec.Column

		addSelect(spec, spec.RawColumn, ColumnRaw)
		addSelect(spec, spec.NormColumn, ColumnNorm)
		addSelect(spec, spec.ConfidenceColumn, ColumnConfidence)
		addSelect(spec, spec.MethodColumn, ColumnMethod)

		switch f.Op {
		case queryplan.OpEQ:
			w.conditions = append(w.conditions, fmt.Sprintf("%s = %s", col, bind(casefold(f.Value))))
			w.rationale = append(w.rationale, fmt.Sprintf("%s=%s", f.Field, f.Value))

		case queryplan.OpIN:
			placeholders := make([]string, len(f.Values))
			for j, v := range f.Values {
				placeholders[j] = bind(casefold(v))
			}
			w.conditions = append(w.conditions, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
			w.rationale = append(w.rationale, fmt.Sprintf("%s IN (%s)", f.Field, strings.Join(f.Values, ", ")))

		case queryplan.OpRANGE:
			w.conditions = append(w.conditions, fmt.Sprintf("%s BETWEEN %s AND %s", col, bind(*f.Start), bind(*f.End)))
			w.rationale = append(w.rationale, fmt.Sprintf("%s BETWEEN %d AND %d", f.Field, *f.Start, *f.End))

		case queryplan.OpCONTAINS:
			tsCol := fmt.Sprintf("to_tsvector('english', %s)", col)
			w.conditions = append(w.conditions, fmt.Sprintf("%s @@ phraseto_tsquery('english', %s)", tsCol, bind(containsValue(f.Value))))
			w.rationale = append(w.rationale, fmt.Sprintf("%s CONTAINS %s", f.Field, f.Value))
		}
	}
	return w, nil
}

func (w whereClause) fromClause() string {
	q := "FROM " + schema.TableRecords
	if len(w.joins) > 0 {
		q += "\n" + strings.Join(w.joins, "\n")
	}
	if len(w.conditions) > 0 {
		q += "\nWHERE " + strings.Join(w.conditions, "\n  AND ")
	}
	return q
}

// Compile translates a validated QueryPlan into SQL. It returns
// *PlanInvalidError for a structurally invalid plan and
// *PlanUnsupportedError for a field absent from the schema contract; Compile
// never guesses at an unknown field's meaning.
func Compile(plan queryplan.QueryPlan) (Compiled, error) {
	for _, f := range plan.Filters {
		if _, ok := schema.Lookup(f.Field); !ok {
			return Compiled{}, &PlanUnsupportedError{Field: string(f.Field)}
		}
	}
	if err := plan.Validate(); err != nil {
		return Compiled{}, &PlanInvalidError{Path: "filters", Reason: err.Error()}
	}

	w, err := buildWhere(plan, true)
	if err != nil {
		return Compiled{}, err
	}

	selectCols := []string{
		schema.TableRecords + "." + schema.RecordsMMSID + " AS mms_id",
		"title_sq.title AS title",
	}
	for _, c := range w.columns {
		// column's owning table is recoverable from the join list; re-derive
		// it here since whereClause only kept the alias/DBColumn pair.
		spec, _ := schema.Lookup(c.Field)
		selectCols = append(selectCols, fmt.Sprintf("%s.%s AS %s", spec.Table, c.DBColumn, c.Alias))
	}

	titleJoin := fmt.Sprintf(
		"LEFT JOIN LATERAL (SELECT %s FROM %s t WHERE t.%s = %s.%s ORDER BY t.id LIMIT 1) AS title_sq ON true",
		schema.TitlesTitle, schema.TableTitles, schema.TitlesRecordID, schema.TableRecords, schema.RecordsMMSID)
	w.joins = append([]string{titleJoin}, w.joins...)

	query := "SELECT " + strings.Join(selectCols, ", ") + "\n" + w.fromClause()

	order := fmt.Sprintf("%s.%s ASC", schema.TableRecords, schema.RecordsMMSID)
	if plan.Order != nil && plan.Order.By != "" {
		dir := "ASC"
		if strings.EqualFold(plan.Order.Dir, "desc") {
			dir = "DESC"
		}
		order = fmt.Sprintf("%s %s", plan.Order.By, dir)
	}
	query += "\nORDER BY " + order

	limit := plan.Limit
	if limit <= 0 {
		limit = 50
	}
	args := w.args
	args = append(args, limit+1) // +1 lets the executor detect truncation without a second query
	query += fmt.Sprintf("\nLIMIT $%d", len(args))

	return Compiled{SQL: query, Args: args, RationaleParts: w.rationale, Columns: w.columns}, nil
}

// CompileCount builds the COUNT(*) query the Executor runs alongside
// Compile's row query to report CandidateSet.TotalCount independent of the
// LIMIT. Its WHERE clause (and therefore its result) is identical to
// Compile's; only the projection differs.
func CompileCount(plan queryplan.QueryPlan) (Compiled, error) {
	if err := plan.Validate(); err != nil {
		return Compiled{}, &PlanInvalidError{Path: "filters", Reason: err.Error()}
	}
	w, err := buildWhere(plan, false)
	if err != nil {
		return Compiled{}, err
	}
	query := "SELECT COUNT(DISTINCT " + schema.TableRecords + "." + schema.RecordsMMSID + ")\n" + w.fromClause()
	return Compiled{SQL: query, Args: w.args, RationaleParts: w.rationale}, nil
}

// casefold applies the same case-folding Stage B requires before binding any
// scalar text parameter, so a filter value and a normalized column compare
// equal regardless of how the NL step capitalized it.
func casefold(s string) string {
	return strings.ToLower(s)
}

// containsValue applies the spec's CONTAINS quoting rule: a multi-token
// value is treated as a phrase and wrapped in double quotes with embedded
// quotes doubled; a single-token value passes through unquoted. Quoting
// applies only to CONTAINS, never to EQ/IN on the same field.
func containsValue(v string) string {
	v = casefold(v)
	if !strings.ContainsAny(v, " \t") {
		return v
	}
	escaped := strings.ReplaceAll(v, `"`, `""`)
	return `"` + escaped + `"`
}
