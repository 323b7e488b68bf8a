package dialogue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hagaybar/biblioplan/internal/planner"
	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/internal/schema"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

const classifyTool = "classify_exploration_intent"

// ExplorationIntent is the closed set of things a CorpusExploration turn can
// be classified as.
type ExplorationIntent string

const (
	IntentNewQuery         ExplorationIntent = "NEW_QUERY"
	IntentRefinement       ExplorationIntent = "REFINEMENT"
	IntentAggregation      ExplorationIntent = "AGGREGATION"
	IntentMetadataQuestion ExplorationIntent = "METADATA_QUESTION"
	IntentEnrichmentRequest ExplorationIntent = "ENRICHMENT_REQUEST"
	IntentRecommendation   ExplorationIntent = "RECOMMENDATION"
	IntentComparison       ExplorationIntent = "COMPARISON"
)

var knownIntents = map[ExplorationIntent]bool{
	IntentNewQuery: true, IntentRefinement: true, IntentAggregation: true,
	IntentMetadataQuestion: true, IntentEnrichmentRequest: true,
	IntentRecommendation: true, IntentComparison: true,
}

// MetadataQuestion is the closed set of directly-answerable metadata
// questions over an active subgroup (spec: "answerable ... with a
// deterministic SQL, not the LLM").
type MetadataQuestion string

const (
	MetadataCount    MetadataQuestion = "count"
	MetadataDateSpan MetadataQuestion = "date_span"
)

// IntentResult is the classifier's structured output. Only the fields
// relevant to Intent are meaningfully populated; the others are zero.
type IntentResult struct {
	Intent ExplorationIntent `json:"intent"`

	// RefinementFilters is set for REFINEMENT: the new filters to AND-merge
	// into the active plan.
	RefinementFilters []queryplan.Filter `json:"refinement_filters,omitempty"`

	// AggregationIntent is set for AGGREGATION, one of aggregate.Intent's
	// string values.
	AggregationIntent string `json:"aggregation_intent,omitempty"`

	// MetadataQuestion is set for METADATA_QUESTION.
	MetadataQuestion MetadataQuestion `json:"metadata_question,omitempty"`

	// EntityType/EntityValue are set for ENRICHMENT_REQUEST and, where
	// relevant, RECOMMENDATION/COMPARISON.
	EntityType  string `json:"entity_type,omitempty"`
	EntityValue string `json:"entity_value,omitempty"`

	// CompareRecordIDs is set for COMPARISON: the record ids (from the
	// active subgroup) the user wants compared.
	CompareRecordIDs []string `json:"compare_record_ids,omitempty"`
}

// Classifier classifies a CorpusExploration turn's free text into exactly
// one ExplorationIntent, using the same tool-forcing pattern as
// internal/planner/llmplan's Stage A interpreter.
type Classifier struct {
	providers *resilience.FallbackGroup[llm.Provider]
}

// NewClassifier wraps a FallbackGroup of providers as a Classifier.
func NewClassifier(providers *resilience.FallbackGroup[llm.Provider]) *Classifier {
	return &Classifier{providers: providers}
}

// Classify asks the LLM to classify turnText against the active subgroup's
// defining query into exactly one ExplorationIntent.
func (c *Classifier) Classify(ctx context.Context, definingQuery, turnText string) (IntentResult, error) {
	req := llm.CompletionRequest{
		SystemPrompt: classifySystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Active subgroup was defined by: %q\n\nUser's new message: %q", definingQuery, turnText)},
		},
		Tools: []llm.ToolDefinition{classifyToolDefinition()},
	}

	resp, err := resilience.ExecuteWithResult(c.providers, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if err != nil {
		return IntentResult{}, &planner.NLUnavailableError{Cause: err}
	}
	if resp == nil {
		return IntentResult{}, &planner.NLUnavailableError{Cause: fmt.Errorf("dialogue: provider returned no response")}
	}

	call, err := findToolCall(resp.ToolCalls, classifyTool)
	if err != nil {
		return IntentResult{}, &planner.NLUnavailableError{Cause: err}
	}

	var result IntentResult
	if err := json.Unmarshal([]byte(call.Arguments), &result); err != nil {
		return IntentResult{}, &planner.PlanInvalidError{Path: "$", Reason: fmt.Sprintf("malformed tool arguments: %v", err)}
	}
	if !knownIntents[result.Intent] {
		return IntentResult{}, &planner.PlanInvalidError{Path: "intent", Reason: fmt.Sprintf("unrecognized exploration intent %q", result.Intent)}
	}
	for _, f := range result.RefinementFilters {
		if _, ok := schema.Lookup(f.Field); !ok {
			return IntentResult{}, &planner.PlanInvalidError{Path: "refinement_filters", Reason: fmt.Sprintf("unknown field %q", f.Field)}
		}
	}
	return result, nil
}

func findToolCall(calls []llm.ToolCall, name string) (llm.ToolCall, error) {
	for _, c := range calls {
		if c.Name == name {
			return c, nil
		}
	}
	return llm.ToolCall{}, fmt.Errorf("dialogue: provider did not call %s", name)
}

const classifySystemPrompt = `You classify the user's latest message within an active corpus-exploration session into exactly one of: NEW_QUERY, REFINEMENT, AGGREGATION, METADATA_QUESTION, ENRICHMENT_REQUEST, RECOMMENDATION, COMPARISON. Call classify_exploration_intent exactly once. For REFINEMENT, extract only the additional filters; they will be AND-merged with the active query's filters. For AGGREGATION, name the aggregation as one of top_publishers, date_distribution, language_breakdown, place_distribution, subject_clusters, agent_breakdown, count_only. For METADATA_QUESTION, answer is either count or date_span. For ENRICHMENT_REQUEST, name the entity_type (agent, place, publisher) and entity_value exactly as it appears in the corpus. For COMPARISON, list the record ids the user wants compared.`

func classifyToolDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        classifyTool,
		Description: "Classify a corpus-exploration turn into exactly one exploration intent.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"intent": map[string]any{
					"type": "string",
					"enum": []string{
						string(IntentNewQuery), string(IntentRefinement), string(IntentAggregation),
						string(IntentMetadataQuestion), string(IntentEnrichmentRequest),
						string(IntentRecommendation), string(IntentComparison),
					},
				},
				"refinement_filters": map[string]any{
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
				"aggregation_intent": map[string]any{"type": "string"},
				"metadata_question":  map[string]any{"type": "string", "enum": []string{"count", "date_span"}},
				"entity_type":        map[string]any{"type": "string"},
				"entity_value":       map[string]any{"type": "string"},
				"compare_record_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"intent"},
		},
		Idempotent:       true,
		CacheableSeconds: 0,
	}
}
