// Package session implements the Session Store: durable per-session state
// (phase, message history, active subgroup, user goals) backed by
// PostgreSQL. All state changes go through Store's API; nothing else writes
// to the sessions table.
package session

import (
	"time"

	"github.com/hagaybar/biblioplan/pkg/candidate"
	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

// Phase is the Dialogue Engine's current stage for a session.
type Phase string

const (
	PhaseQueryDefinition  Phase = "QueryDefinition"
	PhaseCorpusExploration Phase = "CorpusExploration"
)

// Role distinguishes user turns from assistant turns in a Message list.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. QueryPlan and CandidateSet are
// set only on turns that executed a query.
type Message struct {
	Role         Role                 `json:"role"`
	Content      string               `json:"content"`
	QueryPlan    *queryplan.QueryPlan `json:"query_plan,omitempty"`
	CandidateSet *candidate.Set       `json:"candidate_set,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// ActiveSubgroup is the CandidateSet currently being explored, plus the
// query that produced it.
type ActiveSubgroup struct {
	CandidateSet   candidate.Set `json:"candidate_set"`
	DefiningQuery  string        `json:"defining_query"`
	FilterSummary  string        `json:"filter_summary"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Goal is a user-stated objective tracked across turns (e.g. "find first
// editions printed before 1700").
type Goal struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the durable state of one conversation.
type Session struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Phase          Phase           `json:"phase"`
	Messages       []Message       `json:"messages"`
	ActiveSubgroup *ActiveSubgroup `json:"active_subgroup,omitempty"`
	UserGoals      []Goal          `json:"user_goals"`
	Context        map[string]any  `json:"context,omitempty"`
}
