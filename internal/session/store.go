package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("session: not found")

// Store is the Session Store (R): the sole owner of session state. Every
// state change goes through Mutate, which serializes turns for a given
// session id behind both a Go-level mutex (so two goroutines handling the
// same session never interleave) and a single database transaction (so a
// crash mid-turn never leaves a half-written row).
//
// Obtain one via New; it is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New returns a Store backed by pool. Migrate must have already been run.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create inserts a new session with the given id in PhaseQueryDefinition.
func (s *Store) Create(ctx context.Context, id string) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Phase:     PhaseQueryDefinition,
		Messages:  []Message{},
		UserGoals: []Goal{},
		Context:   map[string]any{},
	}

	messagesJSON, _ := json.Marshal(sess.Messages)
	goalsJSON, _ := json.Marshal(sess.UserGoals)
	contextJSON, _ := json.Marshal(sess.Context)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, phase, created_at, updated_at, messages, active_subgroup, user_goals, context)
		VALUES ($1, $2, $3, $4, $5, 'null', $6, $7)`,
		sess.ID, string(sess.Phase), sess.CreatedAt, sess.UpdatedAt, messagesJSON, goalsJSON, contextJSON)
	if err != nil {
		return Session{}, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// Get loads a session by id without acquiring the session mutex. Callers
// that intend to modify the session must use Mutate instead.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, phase, created_at, updated_at, messages, active_subgroup, user_goals, context
		FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// Delete removes a session and every turn it holds. There is no soft
// delete; DELETE /sessions/{id} is permanent.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Mutate loads the session, applies fn to a mutable copy, and writes the
// result back — all within a single database transaction and while holding
// the session's Go-level mutex, so no turn observes partially-written state
// from a concurrent turn on the same session. If fn returns an error, or
// ctx is cancelled, no write occurs.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("session: mutate: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, phase, created_at, updated_at, messages, active_subgroup, user_goals, context
		FROM sessions WHERE id = $1 FOR UPDATE`, id)
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, err
	}

	if err := fn(&sess); err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = time.Now().UTC()

	messagesJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return Session{}, fmt.Errorf("session: mutate: marshal messages: %w", err)
	}
	var subgroupJSON []byte
	if sess.ActiveSubgroup != nil {
		subgroupJSON, err = json.Marshal(sess.ActiveSubgroup)
		if err != nil {
			return Session{}, fmt.Errorf("session: mutate: marshal active_subgroup: %w", err)
		}
	} else {
		subgroupJSON = []byte("null")
	}
	goalsJSON, err := json.Marshal(sess.UserGoals)
	if err != nil {
		return Session{}, fmt.Errorf("session: mutate: marshal user_goals: %w", err)
	}
	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return Session{}, fmt.Errorf("session: mutate: marshal context: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET phase = $2, updated_at = $3, messages = $4, active_subgroup = $5, user_goals = $6, context = $7
		WHERE id = $1`,
		sess.ID, string(sess.Phase), sess.UpdatedAt, messagesJSON, subgroupJSON, goalsJSON, contextJSON)
	if err != nil {
		return Session{}, fmt.Errorf("session: mutate: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("session: mutate: commit: %w", err)
	}
	return sess, nil
}

// row is satisfied by both pgx.Row (QueryRow) and the row produced inside a
// transaction, letting scanSession serve both Get and Mutate.
type row interface {
	Scan(dest ...any) error
}

func scanSession(r row) (Session, error) {
	var (
		sess            Session
		phase           string
		messagesJSON    []byte
		subgroupJSON    []byte
		goalsJSON       []byte
		contextJSON     []byte
	)
	err := r.Scan(&sess.ID, &phase, &sess.CreatedAt, &sess.UpdatedAt, &messagesJSON, &subgroupJSON, &goalsJSON, &contextJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("session: scan: %w", err)
	}
	sess.Phase = Phase(phase)

	if err := json.Unmarshal(messagesJSON, &sess.Messages); err != nil {
		return Session{}, fmt.Errorf("session: unmarshal messages: %w", err)
	}
	if len(subgroupJSON) > 0 && string(subgroupJSON) != "null" {
		sess.ActiveSubgroup = &ActiveSubgroup{}
		if err := json.Unmarshal(subgroupJSON, sess.ActiveSubgroup); err != nil {
			return Session{}, fmt.Errorf("session: unmarshal active_subgroup: %w", err)
		}
	}
	if err := json.Unmarshal(goalsJSON, &sess.UserGoals); err != nil {
		return Session{}, fmt.Errorf("session: unmarshal user_goals: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &sess.Context); err != nil {
		return Session{}, fmt.Errorf("session: unmarshal context: %w", err)
	}
	return sess, nil
}
