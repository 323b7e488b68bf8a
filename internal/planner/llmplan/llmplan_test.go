package llmplan

import (
	"context"
	"testing"

	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
	"github.com/hagaybar/biblioplan/pkg/provider/llm/mock"
)

func TestInterpret_ParsesToolCallIntoResult(t *testing.T) {
	m := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{
				{
					Name: emitPlanTool,
					Arguments: `{
						"overall_confidence": 0.91,
						"uncertainties": [],
						"query_plan": {
							"version": "1.0",
							"intent": "search",
							"limit": 20,
							"filters": [{"field": "place", "op": "EQ", "value": "Paris"}]
						}
					}`,
				},
			},
		},
	}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	it := New(group)

	got, err := it.Interpret(context.Background(), "books printed in Paris")
	if err != nil {
		t.Fatalf("Interpret returned error: %v", err)
	}
	if got.OverallConfidence != 0.91 {
		t.Errorf("OverallConfidence = %v, want 0.91", got.OverallConfidence)
	}
	if len(got.QueryPlan.Filters) != 1 || got.QueryPlan.Filters[0].Value != "Paris" {
		t.Errorf("QueryPlan.Filters = %+v", got.QueryPlan.Filters)
	}
}

func TestInterpret_MissingToolCallIsNLUnavailable(t *testing.T) {
	m := &mock.Provider{CompleteResponse: &llm.CompletionResponse{}}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	it := New(group)

	_, err := it.Interpret(context.Background(), "anything")
	if _, ok := err.(*planner.NLUnavailableError); !ok {
		t.Fatalf("expected *planner.NLUnavailableError, got %T: %v", err, err)
	}
}

func TestInterpret_InvalidPlanSurfacesAsPlanInvalid(t *testing.T) {
	m := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{
				{
					Name: emitPlanTool,
					Arguments: `{
						"overall_confidence": 0.9,
						"uncertainties": [],
						"query_plan": {
							"version": "1.0",
							"intent": "search",
							"limit": 20,
							"filters": [{"field": "not_a_field", "op": "EQ", "value": "x"}]
						}
					}`,
				},
			},
		},
	}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	it := New(group)

	_, err := it.Interpret(context.Background(), "anything")
	if _, ok := err.(*planner.PlanInvalidError); !ok {
		t.Fatalf("expected *planner.PlanInvalidError, got %T: %v", err, err)
	}
}
