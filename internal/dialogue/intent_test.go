package dialogue

import (
	"context"
	"testing"

	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
	"github.com/hagaybar/biblioplan/pkg/provider/llm/mock"
)

func TestClassify_ParsesRefinementFilters(t *testing.T) {
	m := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{
				{
					Name: classifyTool,
					Arguments: `{
						"intent": "REFINEMENT",
						"refinement_filters": [{"field": "date", "op": "RANGE", "start": 1500, "end": 1599}]
					}`,
				},
			},
		},
	}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	c := NewClassifier(group)

	got, err := c.Classify(context.Background(), "books printed in Paris", "only from the 1500s")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if got.Intent != IntentRefinement {
		t.Fatalf("Intent = %q, want %q", got.Intent, IntentRefinement)
	}
	if len(got.RefinementFilters) != 1 || got.RefinementFilters[0].Field != "date" {
		t.Errorf("RefinementFilters = %+v", got.RefinementFilters)
	}
}

func TestClassify_UnknownIntentIsPlanInvalid(t *testing.T) {
	m := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{
				{Name: classifyTool, Arguments: `{"intent": "SOMETHING_ELSE"}`},
			},
		},
	}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	c := NewClassifier(group)

	_, err := c.Classify(context.Background(), "query", "turn")
	if _, ok := err.(*planner.PlanInvalidError); !ok {
		t.Fatalf("expected *planner.PlanInvalidError, got %T: %v", err, err)
	}
}

func TestClassify_MissingToolCallIsNLUnavailable(t *testing.T) {
	m := &mock.Provider{CompleteResponse: &llm.CompletionResponse{}}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	c := NewClassifier(group)

	_, err := c.Classify(context.Background(), "query", "turn")
	if _, ok := err.(*planner.NLUnavailableError); !ok {
		t.Fatalf("expected *planner.NLUnavailableError, got %T: %v", err, err)
	}
}

func TestClassify_UnknownRefinementFieldIsPlanInvalid(t *testing.T) {
	m := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{
				{
					Name: classifyTool,
					Arguments: `{
						"intent": "REFINEMENT",
						"refinement_filters": [{"field": "not_a_field", "op": "EQ", "value": "x"}]
					}`,
				},
			},
		},
	}
	group := resilience.NewFallbackGroup[llm.Provider](m, "mock", resilience.FallbackConfig{})
	c := NewClassifier(group)

	_, err := c.Classify(context.Background(), "query", "turn")
	if _, ok := err.(*planner.PlanInvalidError); !ok {
		t.Fatalf("expected *planner.PlanInvalidError, got %T: %v", err, err)
	}
}
