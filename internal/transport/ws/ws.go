// Package ws implements the streaming WS /ws/chat endpoint: it wraps the
// same [dialogue.Engine] turn the HTTP transport calls and reports it as a
// sequence of events instead of one response. A phase_change event is sent
// before the turn starts; the remaining events are built from the completed
// turn's result and sent after the turn returns.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/hagaybar/biblioplan/internal/dialogue"
	"github.com/hagaybar/biblioplan/internal/observe"
	"github.com/hagaybar/biblioplan/internal/session"
	"github.com/hagaybar/biblioplan/pkg/candidate"
)

// candidateTrancheSize is the number of candidates streamed per
// "candidates" message, per spec.md §6.1.
const candidateTrancheSize = 10

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 10 * time.Second

// Server upgrades HTTP connections to WebSocket and drives dialogue turns
// over them.
type Server struct {
	engine  *dialogue.Engine
	metrics *observe.Metrics
}

// New returns a Server ready to [Server.Register] on a mux.
func New(engine *dialogue.Engine, metrics *observe.Metrics) *Server {
	return &Server{engine: engine, metrics: metrics}
}

// Register adds the /ws/chat route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/chat", s.handleChat)
}

// incoming is one client-sent frame on /ws/chat.
type incoming struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// event is the envelope for every server-sent frame. Type selects which of
// the payload fields is populated.
type event struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id,omitempty"`
	Phase     string   `json:"phase,omitempty"`
	Candidates []candidate.Candidate `json:"candidates,omitempty"`
	Aggregation any     `json:"aggregation,omitempty"`
	Enrichment  any     `json:"enrichment,omitempty"`
	Response    any     `json:"response,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	for {
		var msg incoming
		if err := readJSON(ctx, conn, &msg); err != nil {
			return
		}
		if strings.TrimSpace(msg.Message) == "" {
			s.writeEvent(ctx, conn, event{Type: "error", Error: "message must not be empty"})
			continue
		}

		sessionID := msg.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
			if _, err := s.engine.Sessions().Create(ctx, sessionID); err != nil {
				s.writeEvent(ctx, conn, event{Type: "error", Error: "failed to create session"})
				continue
			}
		}

		if before, err := s.engine.Sessions().Get(ctx, sessionID); err == nil {
			s.writeEvent(ctx, conn, event{Type: "phase_change", SessionID: sessionID, Phase: string(before.Phase)})
		}

		result, err := s.engine.HandleTurn(ctx, sessionID, msg.Message)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				s.writeEvent(ctx, conn, event{Type: "error", SessionID: sessionID, Error: "unknown session"})
			} else {
				s.writeEvent(ctx, conn, event{Type: "error", SessionID: sessionID, Error: err.Error()})
			}
			continue
		}

		s.writeEvent(ctx, conn, event{Type: "phase_change", SessionID: sessionID, Phase: string(result.Phase)})

		if result.CandidateSet != nil {
			s.streamCandidates(ctx, conn, sessionID, result.CandidateSet.Candidates)
		}
		if result.Aggregation != nil {
			s.writeEvent(ctx, conn, event{Type: "aggregation_result", SessionID: sessionID, Aggregation: result.Aggregation})
		}
		if result.Enrichment != nil {
			s.writeEvent(ctx, conn, event{Type: "enrichment_progress", SessionID: sessionID, Enrichment: nil})
			s.writeEvent(ctx, conn, event{Type: "enrichment_result", SessionID: sessionID, Enrichment: result.Enrichment})
		}

		followups := result.SuggestedFollowups
		if followups == nil {
			followups = []string{}
		}
		s.writeEvent(ctx, conn, event{
			Type:      "response",
			SessionID: sessionID,
			Phase:     string(result.Phase),
			Response: map[string]any{
				"message":              result.Message,
				"suggested_followups":  followups,
				"clarification_needed": result.ClarificationNeeded,
				"confidence":           result.Confidence,
			},
		})
	}
}

// streamCandidates sends candidates in fixed-size tranches, per spec.md
// §6.1's "batched candidate tranches of 10".
func (s *Server) streamCandidates(ctx context.Context, conn *websocket.Conn, sessionID string, candidates []candidate.Candidate) {
	for start := 0; start < len(candidates); start += candidateTrancheSize {
		end := min(start+candidateTrancheSize, len(candidates))
		s.writeEvent(ctx, conn, event{
			Type:       "candidates",
			SessionID:  sessionID,
			Candidates: candidates[start:end],
		})
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, e event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, data)
}

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
