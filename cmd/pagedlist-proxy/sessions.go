package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/pagedlist/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("too many sessions")
)

// session is one list view: a paged model over a remote endpoint.
type session struct {
	id       string
	endpoint string
	delay    time.Duration
	created  time.Time

	paged *pagination.PagedModel[json.RawMessage]
	model pagination.Model[json.RawMessage]

	mu         sync.Mutex
	lastAccess time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// sessionStore holds sessions until they sit idle for longer than ttl.
type sessionStore struct {
	ttl    time.Duration
	max    int
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(ttl time.Duration, max int, logger zerolog.Logger) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		max:      max,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// create registers a session for pager. A positive delay wraps the model in
// a DelayedPagedModel.
func (st *sessionStore) create(endpoint string, pager pagination.Pager[json.RawMessage], delay time.Duration) (*session, error) {
	paged, err := pagination.NewPagedModel(pager, pagination.WithName("proxy"))
	if err != nil {
		return nil, err
	}

	var model pagination.Model[json.RawMessage] = paged
	if delay > 0 {
		model = pagination.NewDelayedPagedModel[json.RawMessage](paged, delay)
	}

	now := st.now()
	s := &session{
		id:         uuid.NewString(),
		endpoint:   endpoint,
		delay:      delay,
		created:    now,
		paged:      paged,
		model:      model,
		lastAccess: now,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.sessions) >= st.max {
		return nil, errTooManySessions
	}
	st.sessions[s.id] = s
	activeSessions.Set(float64(len(st.sessions)))
	sessionsCreated.Inc()

	st.logger.Info().
		Str("session_id", s.id).
		Str("endpoint", endpoint).
		Int("total", pager.Total).
		Dur("delay", delay).
		Msg("Session created")

	return s, nil
}

func (st *sessionStore) get(id string) (*session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, errSessionNotFound
	}
	s.touch(st.now())
	return s, nil
}

func (st *sessionStore) delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return errSessionNotFound
	}
	delete(st.sessions, id)
	activeSessions.Set(float64(len(st.sessions)))
	st.logger.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// sweep drops sessions idle for longer than ttl and returns how many went.
// In-flight resolves on a dropped session still complete.
func (st *sessionStore) sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	activeSessions.Set(float64(len(st.sessions)))
	if removed > 0 {
		st.logger.Info().Int("removed", removed).Msg("Expired idle sessions")
	}
	return removed
}

// run sweeps every interval until ctx is done.
func (st *sessionStore) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweep()
		}
	}
}
