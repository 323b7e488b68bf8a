// Package http implements the chat/health/session HTTP surface described in
// spec.md §6.1: POST /chat, GET /health, GET /sessions/{id}, and
// DELETE /sessions/{id}.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hagaybar/biblioplan/internal/dialogue"
	"github.com/hagaybar/biblioplan/internal/observe"
	"github.com/hagaybar/biblioplan/internal/session"
)

// Config configures the HTTP transport.
type Config struct {
	// RequestsPerMinute bounds the per-IP token bucket on POST /chat. Zero
	// or a negative value uses 10.
	RequestsPerMinute int

	// DatabaseConnected reports the bibliographic database's reachability
	// for GET /health.
	DatabaseConnected func(ctx context.Context) bool

	// SessionStoreOK reports the session database's reachability for
	// GET /health.
	SessionStoreOK func(ctx context.Context) bool

	// Metrics records rate-limit rejections. Required.
	Metrics *observe.Metrics
}

// Server serves the chat/health/session HTTP endpoints over a
// [dialogue.Engine].
type Server struct {
	engine *dialogue.Engine
	cfg    Config

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New returns a Server ready to [Server.Register] on a mux.
func New(engine *dialogue.Engine, cfg Config) *Server {
	return &Server{
		engine:   engine,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Register adds every route this package serves to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
}

// chatRequest is the POST /chat request body, per spec.md §6.1.
type chatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// chatResponse is the POST /chat response envelope.
type chatResponse struct {
	Success  bool          `json:"success"`
	Response *chatResponseBody `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// chatResponseBody mirrors [dialogue.TurnResult] in the shape spec.md §6.1
// names for the response.response object.
type chatResponseBody struct {
	Message             string   `json:"message"`
	CandidateSet        any      `json:"candidate_set,omitempty"`
	SuggestedFollowups  []string `json:"suggested_followups"`
	ClarificationNeeded bool     `json:"clarification_needed,omitempty"`
	SessionID           string   `json:"session_id"`
	Phase               string   `json:"phase"`
	Confidence          *float64 `json:"confidence,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r) {
		s.cfg.Metrics.RecordRateLimitRejection(r.Context(), "/chat")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	sessionID := req.SessionID
	ctx := r.Context()
	if sessionID == "" {
		sessionID = uuid.NewString()
		if _, err := s.engine.Sessions().Create(ctx, sessionID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
	}

	result, err := s.engine.HandleTurn(ctx, sessionID, req.Message)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	followups := result.SuggestedFollowups
	if followups == nil {
		followups = []string{}
	}

	body := &chatResponseBody{
		Message:             result.Message,
		SuggestedFollowups:  followups,
		ClarificationNeeded: result.ClarificationNeeded,
		SessionID:           sessionID,
		Phase:               string(result.Phase),
		Confidence:          result.Confidence,
	}
	if result.CandidateSet != nil {
		body.CandidateSet = result.CandidateSet
	}

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Response: body})
}

// healthResponse is the GET /health body, per spec.md §6.1.
type healthResponse struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
	SessionStoreOK    bool   `json:"session_store_ok"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dbOK := s.cfg.DatabaseConnected == nil || s.cfg.DatabaseConnected(ctx)
	sessOK := s.cfg.SessionStoreOK == nil || s.cfg.SessionStoreOK(ctx)

	status := "ok"
	code := http.StatusOK
	if !dbOK || !sessOK {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, healthResponse{
		Status:            status,
		DatabaseConnected: dbOK,
		SessionStoreOK:    sessOK,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.engine.Sessions().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.Sessions().Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// allow applies the per-IP token bucket. Rejections never touch the
// session mutex — the limiter check happens before any session lookup.
func (s *Server) allow(r *http.Request) bool {
	rpm := s.cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}

	ip := clientIP(r)
	s.limitersMu.Lock()
	lim, ok := s.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
		s.limiters[ip] = lim
	}
	s.limitersMu.Unlock()

	return lim.Allow()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, chatResponse{Success: false, Error: msg})
}
