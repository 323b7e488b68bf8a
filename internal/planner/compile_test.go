package planner

import (
	"strings"
	"testing"

	"github.com/hagaybar/biblioplan/internal/schema"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

func TestCompile_EQProducesEqualsPredicate(t *testing.T) {
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: schema.FieldPlace, Op: queryplan.OpEQ, Value: "Paris"},
		},
		Limit: 10,
	}

	got, err := Compile(plan)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !strings.Contains(got.SQL, "place_norm = $1") {
		t.Errorf("SQL missing EQ predicate: %s", got.SQL)
	}
	if got.Args[0] != "paris" {
		t.Errorf("Args[0] = %v, want casefolded value %q", got.Args[0], "paris")
	}
}

func TestCompile_RangeProducesBetweenPredicate(t *testing.T) {
	start, end := 1500, 1599
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: schema.FieldDate, Op: queryplan.OpRANGE, Start: &start, End: &end},
		},
		Limit: 10,
	}

	got, err := Compile(plan)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !strings.Contains(got.SQL, "BETWEEN $1 AND $2") {
		t.Errorf("SQL missing RANGE predicate: %s", got.SQL)
	}
}

func TestCompile_ContainsQuotesMultiTokenPhrase(t *testing.T) {
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: schema.FieldSubject, Op: queryplan.OpCONTAINS, Value: "natural history"},
		},
		Limit: 10,
	}

	got, err := Compile(plan)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if got.Args[0] != `"natural history"` {
		t.Errorf("Args[0] = %v, want a quoted phrase", got.Args[0])
	}
}

func TestCompile_ContainsLeavesSingleTokenUnquoted(t *testing.T) {
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: schema.FieldSubject, Op: queryplan.OpCONTAINS, Value: "alchemy"},
		},
		Limit: 10,
	}

	got, err := Compile(plan)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if got.Args[0] != "alchemy" {
		t.Errorf("Args[0] = %v, want unquoted %q", got.Args[0], "alchemy")
	}
}

func TestCompile_ContainsInvalidOnNonFullTextField(t *testing.T) {
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: schema.FieldPlace, Op: queryplan.OpCONTAINS, Value: "paris"},
		},
		Limit: 10,
	}

	_, err := Compile(plan)
	if err == nil {
		t.Fatal("expected error for CONTAINS on a non-full-text field")
	}
	var invalid *PlanInvalidError
	if !asPlanInvalid(err, &invalid) {
		t.Errorf("expected *PlanInvalidError, got %T: %v", err, err)
	}
}

func TestCompile_UnknownFieldIsUnsupported(t *testing.T) {
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: "not_a_real_field", Op: queryplan.OpEQ, Value: "x"},
		},
		Limit: 10,
	}

	_, err := Compile(plan)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestCompile_LimitDefaultsWhenUnset(t *testing.T) {
	plan := queryplan.QueryPlan{PlanVersion: queryplan.Version}

	got, err := Compile(plan)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !strings.Contains(got.SQL, "LIMIT $1") {
		t.Errorf("SQL missing default LIMIT: %s", got.SQL)
	}
}

func TestCompileCount_SharesWhereClauseWithCompile(t *testing.T) {
	plan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Filters: []queryplan.Filter{
			{Field: schema.FieldPlace, Op: queryplan.OpEQ, Value: "Paris"},
		},
		Limit: 10,
	}

	count, err := CompileCount(plan)
	if err != nil {
		t.Fatalf("CompileCount returned error: %v", err)
	}
	if !strings.Contains(count.SQL, "COUNT(DISTINCT") {
		t.Errorf("expected a COUNT(DISTINCT ...) query, got: %s", count.SQL)
	}
	if !strings.Contains(count.SQL, "place_norm = $1") {
		t.Errorf("count SQL missing WHERE predicate: %s", count.SQL)
	}
	if len(count.Columns) != 0 {
		t.Errorf("CompileCount should not project evidence columns, got %+v", count.Columns)
	}
}

func asPlanInvalid(err error, target **PlanInvalidError) bool {
	pe, ok := err.(*PlanInvalidError)
	if ok {
		*target = pe
	}
	return ok
}
