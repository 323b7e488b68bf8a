// Package dialogue implements the Dialogue Engine: the two-phase turn
// algorithm (QueryDefinition / CorpusExploration) that wires the Plan
// Compiler, Plan Cache, Executor, Aggregator, Enrichment, and Session Store
// together into one conversational turn.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hagaybar/biblioplan/internal/aggregate"
	"github.com/hagaybar/biblioplan/internal/planner/cache"
	"github.com/hagaybar/biblioplan/internal/planner/llmplan"
	"github.com/hagaybar/biblioplan/internal/query"
	"github.com/hagaybar/biblioplan/internal/session"
	"github.com/hagaybar/biblioplan/pkg/candidate"
	"github.com/hagaybar/biblioplan/pkg/enrich"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

// ConfidenceGate is the single threshold that separates execution from
// clarification in QueryDefinition. It is the only gate in the turn
// algorithm — nothing else decides whether a plan executes.
const ConfidenceGate = 0.85

// TurnResult is what one HandleTurn call produces, shaped after the /chat
// response envelope: message text plus whichever structured payload the
// turn produced.
type TurnResult struct {
	Message             string
	CandidateSet        *candidate.Set
	Aggregation         *aggregate.Result
	Enrichment          *enrich.Result
	SuggestedFollowups  []string
	ClarificationNeeded bool
	Phase               session.Phase
	Confidence          *float64
}

// Engine wires together every component a dialogue turn touches. All of its
// dependencies are read-only or self-synchronizing; Engine itself holds no
// mutable state.
type Engine struct {
	sessions    *session.Store
	interpreter *llmplan.Interpreter
	classifier  *Classifier
	planCache   *cache.Cache
	model       string
	executor    *query.Executor
	aggregator  *aggregate.Aggregator
	metadata    *MetadataAnswerer
	enricher    enrich.Enricher
}

// New assembles an Engine from its components. model identifies the NL
// provider configuration used for this Engine's plan-cache entries.
func New(
	sessions *session.Store,
	interpreter *llmplan.Interpreter,
	classifier *Classifier,
	planCache *cache.Cache,
	model string,
	executor *query.Executor,
	aggregator *aggregate.Aggregator,
	metadata *MetadataAnswerer,
	enricher enrich.Enricher,
) *Engine {
	return &Engine{
		sessions:    sessions,
		interpreter: interpreter,
		classifier:  classifier,
		planCache:   planCache,
		model:       model,
		executor:    executor,
		aggregator:  aggregator,
		metadata:    metadata,
		enricher:    enricher,
	}
}

// Sessions returns the Session Store backing this Engine, for transports
// that need to serve session projections or expiration directly (GET/DELETE
// /sessions/{id}) without going through a dialogue turn.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// HandleTurn runs one conversational turn for sessionID. The entire turn —
// every external call and every session mutation — runs inside a single
// Session Store transaction (session.Store.Mutate), so a cancelled or
// failed turn leaves no partial state behind: Mutate rolls back on any
// error returned here, per spec's cancellation semantics.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, userText string) (TurnResult, error) {
	var result TurnResult
	_, err := e.sessions.Mutate(ctx, sessionID, func(sess *session.Session) error {
		r, err := e.handleTurn(ctx, sess, userText)
		if err != nil {
			return err
		}
		r.Phase = sess.Phase
		result = r
		return nil
	})
	if err != nil {
		return TurnResult{}, err
	}
	return result, nil
}

func (e *Engine) handleTurn(ctx context.Context, sess *session.Session, userText string) (TurnResult, error) {
	switch sess.Phase {
	case session.PhaseCorpusExploration:
		if sess.ActiveSubgroup != nil {
			return e.handleCorpusExploration(ctx, sess, userText)
		}
		fallthrough
	default:
		return e.handleQueryDefinition(ctx, sess, userText)
	}
}

// lowConfidenceError signals that Stage A produced a plan but its
// confidence did not clear ConfidenceGate. It is never returned to a
// caller outside this package; handleQueryDefinition converts it into a
// clarification TurnResult.
type lowConfidenceError struct {
	confidence    float64
	uncertainties []string
}

func (e *lowConfidenceError) Error() string {
	return fmt.Sprintf("dialogue: confidence %.2f below gate %.2f", e.confidence, ConfidenceGate)
}

func (e *Engine) handleQueryDefinition(ctx context.Context, sess *session.Session, userText string) (TurnResult, error) {
	key := cache.Key(userText)

	var interpretedConfidence float64
	var interpretedUncertainties []string
	entry, err := e.planCache.GetOrCompile(key, e.model, func() (queryplan.QueryPlan, error) {
		r, ierr := e.interpreter.Interpret(ctx, userText)
		if ierr != nil {
			return queryplan.QueryPlan{}, ierr
		}
		interpretedConfidence = r.OverallConfidence
		interpretedUncertainties = r.Uncertainties
		if r.OverallConfidence < ConfidenceGate {
			// Deliberately not cached: a low-confidence interpretation is not
			// memoized, so the identical question gets a fresh interpretation
			// attempt next time rather than being stuck replaying a
			// clarification forever.
			return queryplan.QueryPlan{}, &lowConfidenceError{confidence: r.OverallConfidence, uncertainties: r.Uncertainties}
		}
		return r.QueryPlan, nil
	})

	if err != nil {
		var lc *lowConfidenceError
		if errors.As(err, &lc) {
			now := time.Now().UTC()
			msg := clarificationText(lc)
			sess.Messages = append(sess.Messages,
				session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
				session.Message{Role: session.RoleAssistant, Content: msg, Timestamp: now},
			)
			conf := lc.confidence
			return TurnResult{
				Message:             msg,
				ClarificationNeeded: true,
				SuggestedFollowups:  lc.uncertainties,
				Confidence:          &conf,
			}, nil
		}
		return TurnResult{}, err
	}

	result, err := e.executor.Execute(ctx, userText, entry.Plan)
	if err != nil {
		return TurnResult{}, err
	}

	now := time.Now().UTC()
	planCopy := entry.Plan
	message := summarizeCandidates(result)
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, QueryPlan: &planCopy, CandidateSet: &result, Timestamp: now},
	)
	sess.ActiveSubgroup = &session.ActiveSubgroup{
		CandidateSet:  result,
		DefiningQuery: userText,
		FilterSummary: filterSummary(entry.Plan),
		CreatedAt:     now,
	}
	sess.Phase = session.PhaseCorpusExploration

	// A cache hit never re-ran Stage A, so interpretedConfidence is left at
	// its zero value; only a plan that once cleared the gate is ever cached,
	// so report the gate itself as a floor in that case.
	conf := interpretedConfidence
	if conf == 0 {
		conf = ConfidenceGate
	}
	return TurnResult{
		Message:            message,
		CandidateSet:       &result,
		SuggestedFollowups: defaultFollowups(result),
		Confidence:         &conf,
	}, nil
}

func (e *Engine) handleCorpusExploration(ctx context.Context, sess *session.Session, userText string) (TurnResult, error) {
	ir, err := e.classifier.Classify(ctx, sess.ActiveSubgroup.DefiningQuery, userText)
	if err != nil {
		return TurnResult{}, err
	}

	switch ir.Intent {
	case IntentNewQuery:
		sess.Phase = session.PhaseQueryDefinition
		sess.ActiveSubgroup = nil
		return e.handleQueryDefinition(ctx, sess, userText)

	case IntentRefinement:
		return e.handleRefinement(ctx, sess, userText, ir)

	case IntentAggregation:
		return e.handleAggregation(ctx, sess, userText, ir)

	case IntentMetadataQuestion:
		return e.handleMetadataQuestion(ctx, sess, userText, ir)

	case IntentEnrichmentRequest:
		return e.handleEnrichment(ctx, sess, userText, ir)

	case IntentRecommendation:
		return e.handleRecommendation(ctx, sess, userText, ir)

	case IntentComparison:
		return e.handleComparison(ctx, sess, userText, ir)

	default:
		return TurnResult{}, fmt.Errorf("dialogue: unhandled exploration intent %q", ir.Intent)
	}
}

func (e *Engine) handleRefinement(ctx context.Context, sess *session.Session, userText string, ir IntentResult) (TurnResult, error) {
	activePlan := sess.ActiveSubgroup.CandidateSet.QueryPlan
	mergedPlan := activePlan
	mergedPlan.Filters = mergeFilters(activePlan.Filters, ir.RefinementFilters)

	result, err := e.executor.Execute(ctx, userText, mergedPlan)
	if err != nil {
		return TurnResult{}, err
	}

	now := time.Now().UTC()
	message := summarizeCandidates(result)
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, QueryPlan: &mergedPlan, CandidateSet: &result, Timestamp: now},
	)
	sess.ActiveSubgroup = &session.ActiveSubgroup{
		CandidateSet:  result,
		DefiningQuery: sess.ActiveSubgroup.DefiningQuery + " | refined: " + userText,
		FilterSummary: filterSummary(mergedPlan),
		CreatedAt:     now,
	}
	return TurnResult{
		Message:            message,
		CandidateSet:       &result,
		SuggestedFollowups: defaultFollowups(result),
	}, nil
}

func (e *Engine) handleAggregation(ctx context.Context, sess *session.Session, userText string, ir IntentResult) (TurnResult, error) {
	ids := recordIDsOf(sess.ActiveSubgroup.CandidateSet)
	agg, err := e.aggregator.Aggregate(ctx, aggregate.Intent(ir.AggregationIntent), ids)
	if err != nil {
		return TurnResult{}, err
	}

	now := time.Now().UTC()
	message := summarizeAggregation(agg)
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, Timestamp: now},
	)
	return TurnResult{Message: message, Aggregation: &agg}, nil
}

func (e *Engine) handleMetadataQuestion(ctx context.Context, sess *session.Session, userText string, ir IntentResult) (TurnResult, error) {
	message, err := e.metadata.Answer(ctx, ir.MetadataQuestion, sess.ActiveSubgroup.CandidateSet)
	if err != nil {
		return TurnResult{}, err
	}

	now := time.Now().UTC()
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, Timestamp: now},
	)
	return TurnResult{Message: message}, nil
}

func (e *Engine) handleEnrichment(ctx context.Context, sess *session.Session, userText string, ir IntentResult) (TurnResult, error) {
	res, err := e.enricher.Enrich(ctx, ir.EntityType, ir.EntityValue)
	if err != nil {
		return TurnResult{}, err
	}

	now := time.Now().UTC()
	message := summarizeEnrichment(res)
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, Timestamp: now},
	)
	return TurnResult{Message: message, Enrichment: &res}, nil
}

// handleRecommendation surfaces records related to the active subgroup by
// finding its most common agent and searching for other records
// sharing it. It does not replace active_subgroup: a recommendation is
// supplementary to, not a refinement of, the current exploration.
func (e *Engine) handleRecommendation(ctx context.Context, sess *session.Session, userText string, ir IntentResult) (TurnResult, error) {
	ids := recordIDsOf(sess.ActiveSubgroup.CandidateSet)
	agentAgg, err := e.aggregator.Aggregate(ctx, aggregate.IntentAgentBreakdown, ids)
	if err != nil {
		return TurnResult{}, err
	}
	if len(agentAgg.Bins) == 0 {
		message := "I couldn't find a common thread to base a recommendation on."
		now := time.Now().UTC()
		sess.Messages = append(sess.Messages,
			session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
			session.Message{Role: session.RoleAssistant, Content: message, Timestamp: now},
		)
		return TurnResult{Message: message}, nil
	}

	topAgent := agentAgg.Bins[0].Key
	recPlan := queryplan.QueryPlan{
		PlanVersion: queryplan.Version,
		Intent:      "recommendation",
		Limit:       10,
		Filters:     []queryplan.Filter{{Field: "agent", Op: queryplan.OpEQ, Value: topAgent}},
	}
	result, err := e.executor.Execute(ctx, userText, recPlan)
	if err != nil {
		return TurnResult{}, err
	}

	now := time.Now().UTC()
	message := fmt.Sprintf("Other records by %s in this corpus: %s", topAgent, summarizeCandidates(result))
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, Timestamp: now},
	)
	return TurnResult{Message: message, CandidateSet: &result}, nil
}

// handleComparison builds a deterministic side-by-side of already-loaded
// Evidence for the requested record ids — no new query or LLM call, since
// the active subgroup's CandidateSet already holds everything needed.
func (e *Engine) handleComparison(ctx context.Context, sess *session.Session, userText string, ir IntentResult) (TurnResult, error) {
	byID := map[string]candidate.Candidate{}
	for _, c := range sess.ActiveSubgroup.CandidateSet.Candidates {
		byID[c.RecordID] = c
	}

	var lines []string
	for _, id := range ir.CompareRecordIDs {
		c, ok := byID[id]
		if !ok {
			lines = append(lines, fmt.Sprintf("%s: not in the active subgroup", id))
			continue
		}
		lines = append(lines, formatComparisonLine(c))
	}
	message := strings.Join(lines, "\n")
	if message == "" {
		message = "No record ids were recognized for comparison."
	}

	now := time.Now().UTC()
	sess.Messages = append(sess.Messages,
		session.Message{Role: session.RoleUser, Content: userText, Timestamp: now},
		session.Message{Role: session.RoleAssistant, Content: message, Timestamp: now},
	)
	return TurnResult{Message: message}, nil
}

func formatComparisonLine(c candidate.Candidate) string {
	var evidence []string
	for _, ev := range c.Evidence {
		evidence = append(evidence, fmt.Sprintf("%s=%s", ev.DBColumn, ev.Value))
	}
	return fmt.Sprintf("%s (%s): %s", c.RecordID, c.Title, strings.Join(evidence, ", "))
}

func clarificationText(lc *lowConfidenceError) string {
	if len(lc.uncertainties) == 0 {
		return "I'm not confident enough in how to interpret that yet — could you say more about what you're looking for?"
	}
	return "I need a bit more detail: " + strings.Join(lc.uncertainties, "; ")
}

func summarizeCandidates(set candidate.Set) string {
	if set.Truncated {
		return fmt.Sprintf("Found %d matching records (showing %d).", set.TotalCount, len(set.Candidates))
	}
	return fmt.Sprintf("Found %d matching record(s).", set.TotalCount)
}

func summarizeAggregation(agg aggregate.Result) string {
	if len(agg.Bins) == 0 {
		return fmt.Sprintf("No %s data available for this subgroup.", agg.Intent)
	}
	var parts []string
	for _, b := range agg.Bins {
		parts = append(parts, fmt.Sprintf("%s: %d", b.Key, b.Count))
	}
	return fmt.Sprintf("%s (total %d): %s", agg.Intent, agg.Total, strings.Join(parts, ", "))
}

func summarizeEnrichment(res enrich.Result) string {
	if res.Source == enrich.SourceNone {
		return fmt.Sprintf("No enrichment data found for %s %q.", res.EntityType, res.EntityValue)
	}
	if res.Description != "" {
		return fmt.Sprintf("%s — %s", res.Label, res.Description)
	}
	return res.Label
}

func defaultFollowups(set candidate.Set) []string {
	followups := []string{"Narrow by date range", "See top publishers", "See subject clusters"}
	if set.TotalCount == 0 {
		return []string{"Try a broader search"}
	}
	return followups
}

func filterSummary(plan queryplan.QueryPlan) string {
	var parts []string
	for _, f := range plan.Filters {
		switch f.Op {
		case queryplan.OpRANGE:
			parts = append(parts, fmt.Sprintf("%s BETWEEN %d AND %d", f.Field, deref(f.Start), deref(f.End)))
		case queryplan.OpIN:
			parts = append(parts, fmt.Sprintf("%s IN (%s)", f.Field, strings.Join(f.Values, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", f.Field, f.Op, f.Value))
		}
	}
	return strings.Join(parts, " AND ")
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func recordIDsOf(set candidate.Set) []string {
	ids := make([]string, len(set.Candidates))
	for i, c := range set.Candidates {
		ids[i] = c.RecordID
	}
	return ids
}

// mergeFilters AND-merges new filters into active, deduplicating by
// (field, op, value/values/start/end) so re-applying the same REFINEMENT
// twice has no additional effect, per spec's idempotence requirement.
func mergeFilters(active, additional []queryplan.Filter) []queryplan.Filter {
	merged := append([]queryplan.Filter{}, active...)
	seen := map[string]bool{}
	for _, f := range merged {
		seen[filterKey(f)] = true
	}
	for _, f := range additional {
		k := filterKey(f)
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, f)
	}
	sort.SliceStable(merged, func(i, j int) bool { return string(merged[i].Field) < string(merged[j].Field) })
	return merged
}

func filterKey(f queryplan.Filter) string {
	return fmt.Sprintf("%s|%s|%s|%v|%v|%v", f.Field, f.Op, f.Value, f.Values, deref(f.Start), deref(f.End))
}
