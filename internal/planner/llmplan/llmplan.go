// Package llmplan implements Stage A of the Plan Compiler: translating a
// free-text question into a QueryPlan via an external structured-output
// provider. It never falls back to a keyword heuristic — a provider failure
// surfaces as planner.NLUnavailableError so the caller can emit a
// clarification turn instead.
package llmplan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

const emitPlanTool = "emit_query_plan"

// Result is the output of Stage A: the overall confidence the interpreter
// has in the plan, the plan itself, and any uncertainties worth surfacing
// to the user even when confidence clears the execution gate.
type Result struct {
	OverallConfidence float64             `json:"overall_confidence"`
	QueryPlan         queryplan.QueryPlan `json:"query_plan"`
	Uncertainties     []string            `json:"uncertainties"`
}

// Interpreter calls an LLM provider (with fallback) to produce a Result from
// a free-text question.
type Interpreter struct {
	providers *resilience.FallbackGroup[llm.Provider]
}

// New wraps a FallbackGroup of providers (primary plus any configured
// fallbacks, e.g. openai then anyllm) as an Interpreter.
func New(providers *resilience.FallbackGroup[llm.Provider]) *Interpreter {
	return &Interpreter{providers: providers}
}

// Interpret asks the LLM to classify question into a QueryPlan. It forces a
// single tool call (emit_query_plan) so the response is always
// machine-parseable JSON, never free text requiring a secondary parse pass.
func (it *Interpreter) Interpret(ctx context.Context, question string) (Result, error) {
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: question},
		},
		Tools: []llm.ToolDefinition{emitPlanToolDefinition()},
	}

	resp, err := resilience.ExecuteWithResult(it.providers, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if err != nil {
		return Result{}, &planner.NLUnavailableError{Cause: err}
	}
	if resp == nil {
		return Result{}, &planner.NLUnavailableError{Cause: fmt.Errorf("llmplan: provider returned no response")}
	}

	call, err := findToolCall(resp.ToolCalls, emitPlanTool)
	if err != nil {
		return Result{}, &planner.NLUnavailableError{Cause: err}
	}

	var result Result
	if err := json.Unmarshal([]byte(call.Arguments), &result); err != nil {
		return Result{}, &planner.PlanInvalidError{Path: "$", Reason: fmt.Sprintf("malformed tool arguments: %v", err)}
	}
	result.QueryPlan.PlanVersion = queryplan.Version

	if err := result.QueryPlan.Validate(); err != nil {
		return Result{}, &planner.PlanInvalidError{Path: "query_plan", Reason: err.Error()}
	}
	return result, nil
}

func findToolCall(calls []llm.ToolCall, name string) (llm.ToolCall, error) {
	for _, c := range calls {
		if c.Name == name {
			return c, nil
		}
	}
	return llm.ToolCall{}, fmt.Errorf("llmplan: provider did not call %s", name)
}

const systemPrompt = `You translate a collector's free-text question about a rare-book corpus into a structured QueryPlan. Call emit_query_plan exactly once with your answer. Only use fields defined in the schema contract: place, publisher, date, agent, subject, language, title. Set overall_confidence low (below 0.85) when the question is ambiguous rather than guessing a filter.`

func emitPlanToolDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        emitPlanTool,
		Description: "Emit the interpreted QueryPlan for the user's question, with a confidence score and any uncertainties.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"overall_confidence": map[string]any{"type": "number"},
				"uncertainties":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"query_plan": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"version": map[string]any{"type": "string"},
						"intent":  map[string]any{"type": "string"},
						"limit":   map[string]any{"type": "integer"},
						"filters": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"field":  map[string]any{"type": "string"},
									"op":     map[string]any{"type": "string", "enum": []string{"EQ", "IN", "RANGE", "CONTAINS"}},
									"value":  map[string]any{"type": "string"},
									"values": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
									"start":  map[string]any{"type": "integer"},
									"end":    map[string]any{"type": "integer"},
								},
								"required": []string{"field", "op"},
							},
						},
					},
					"required": []string{"version", "intent", "filters", "limit"},
				},
			},
			"required": []string{"overall_confidence", "query_plan", "uncertainties"},
		},
		Idempotent:       true,
		CacheableSeconds: 0,
	}
}
