// Package candidate defines the result shape of executing a QueryPlan: a
// CandidateSet of matched records, each annotated with the Evidence that
// justifies its inclusion.
package candidate

import "github.com/hagaybar/biblioplan/pkg/queryplan"

// Evidence ties one matched column value back to the MARC field path it was
// read from, and, when the column is a normalized one, the normalization
// that produced it.
type Evidence struct {
	FieldPath       string   `json:"field_path"`
	DBColumn        string   `json:"db_column"`
	Value           string   `json:"value"`
	NormalizedValue *string  `json:"normalized_value,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
}

// Candidate is one matched record with the evidence that justifies the
// match.
type Candidate struct {
	RecordID       string     `json:"record_id"`
	Title          string     `json:"title"`
	MatchRationale string     `json:"match_rationale"`
	Evidence       []Evidence `json:"evidence"`
}

// Set is the result of executing a QueryPlan: the matched candidates plus
// enough provenance (the compiled plan, the SQL it produced) to make the
// result auditable and cacheable.
type Set struct {
	QueryText    string            `json:"query_text"`
	QueryPlan    queryplan.QueryPlan `json:"query_plan"`
	SQLExecuted  string            `json:"sql_executed"`
	Candidates   []Candidate       `json:"candidates"`
	TotalCount   int               `json:"total_count"`
	Truncated    bool              `json:"truncated"`
}
