// Package queryplan defines the QueryPlan the Plan Compiler produces and the
// Executor consumes: a deterministic, versioned description of a bibliographic
// query that is independent of the natural-language question that produced
// it.
package queryplan

import (
	"fmt"

	"github.com/hagaybar/biblioplan/internal/schema"
)

// Version is the only QueryPlan schema version this service emits or
// accepts. A future breaking change to the plan shape bumps this and adds an
// explicit migration step; there is no implicit upgrade.
const Version = "1.0"

// Op enumerates the filter predicates a Filter may apply.
type Op string

const (
	OpEQ       Op = "EQ"
	OpIN       Op = "IN"
	OpRANGE    Op = "RANGE"
	OpCONTAINS Op = "CONTAINS"
)

// Filter narrows a query to records whose Field satisfies Op against Value,
// Values, or the [Start,End] range, depending on Op.
type Filter struct {
	Field  schema.FilterField `json:"field"`
	Op     Op                 `json:"op"`
	Value  string             `json:"value,omitempty"`
	Values []string           `json:"values,omitempty"`
	Start  *int               `json:"start,omitempty"`
	End    *int               `json:"end,omitempty"`
}

// Order names the sort applied to a candidate set before truncation.
type Order struct {
	By  string `json:"by"`
	Dir string `json:"dir"` // "asc" or "desc"
}

// QueryPlan is the deterministic, versioned description of a bibliographic
// query. It carries no reference to the natural-language question that
// produced it; two equivalent questions compile to byte-identical plans.
type QueryPlan struct {
	PlanVersion string   `json:"version"`
	Intent      string   `json:"intent"`
	Filters     []Filter `json:"filters"`
	Limit       int      `json:"limit"`
	Order       *Order   `json:"order,omitempty"`
}

// Validate checks every invariant from the data model: RANGE requires a
// numeric start/end with start<=end, IN requires a non-empty Values, CONTAINS
// is valid only against full-text fields, and every referenced field must be
// a known FilterField.
func (p QueryPlan) Validate() error {
	if p.PlanVersion != Version {
		return fmt.Errorf("queryplan: unsupported version %q, want %q", p.PlanVersion, Version)
	}
	for i, f := range p.Filters {
		if _, ok := schema.Lookup(f.Field); !ok {
			return fmt.Errorf("queryplan: filter %d: unknown field %q", i, f.Field)
		}
		switch f.Op {
		case OpEQ:
			if f.Value == "" {
				return fmt.Errorf("queryplan: filter %d: EQ requires a non-empty value", i)
			}
		case OpIN:
			if len(f.Values) == 0 {
				return fmt.Errorf("queryplan: filter %d: IN requires a non-empty values list", i)
			}
		case OpRANGE:
			if f.Start == nil || f.End == nil {
				return fmt.Errorf("queryplan: filter %d: RANGE requires both start and end", i)
			}
			if *f.Start > *f.End {
				return fmt.Errorf("queryplan: filter %d: RANGE start %d > end %d", i, *f.Start, *f.End)
			}
		case OpCONTAINS:
			if !schema.IsFullText(f.Field) {
				return fmt.Errorf("queryplan: filter %d: CONTAINS not valid on field %q", i, f.Field)
			}
			if f.Value == "" {
				return fmt.Errorf("queryplan: filter %d: CONTAINS requires a non-empty value", i)
			}
		default:
			return fmt.Errorf("queryplan: filter %d: unknown op %q", i, f.Op)
		}
	}
	return nil
}
