package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pagedlist/pkg/metrics"
	"github.com/Sternrassler/pagedlist/pkg/pagination"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// statusClientClosedRequest is reported when the caller went away before the
// element was resolved.
const statusClientClosedRequest = 499

// maxDelay caps the per-session resolve delay.
const maxDelay = 10 * time.Second

// pagerFactory builds the pager for an upstream endpoint.
type pagerFactory func(ctx context.Context, endpoint string) (pagination.Pager[json.RawMessage], error)

type server struct {
	sessions   *sessionStore
	newPager   pagerFactory
	prefetcher *pagination.Prefetcher
	ready      func(ctx context.Context) error
	logger     zerolog.Logger
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/lists", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/lists/{id}", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/lists/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/lists/{id}/items/{index:-?[0-9]+}", s.handleItem).Methods(http.MethodGet)
	r.HandleFunc("/lists/{id}/prefetch", s.handlePrefetch).Methods(http.MethodPost)

	return r
}

type createRequest struct {
	Endpoint string `json:"endpoint"`
	DelayMS  int    `json:"delay_ms"`
}

type createResponse struct {
	ID       string `json:"id"`
	Total    int    `json:"total"`
	PageSize int    `json:"page_size"`
	Pages    int    `json:"pages"`
}

type summaryResponse struct {
	ID            string    `json:"id"`
	Endpoint      string    `json:"endpoint"`
	Total         int       `json:"total"`
	PageSize      int       `json:"page_size"`
	Pages         int       `json:"pages"`
	ResolvedPages int       `json:"resolved_pages"`
	DelayMS       int64     `json:"delay_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

type itemResponse struct {
	Index    int             `json:"index"`
	Resolved bool            `json:"resolved"`
	Item     json.RawMessage `json:"item"`
}

type prefetchResponse struct {
	Requested  int    `json:"requested"`
	Resolved   int    `json:"resolved"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "NOT READY", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "READY")
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	delay := time.Duration(req.DelayMS) * time.Millisecond
	if delay < 0 || delay > maxDelay {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("delay_ms must be between 0 and %d", maxDelay.Milliseconds()))
		return
	}

	pager, err := s.newPager(r.Context(), req.Endpoint)
	if err != nil {
		if r.Context().Err() != nil {
			writeError(w, statusClientClosedRequest, "request cancelled")
			return
		}
		s.logger.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Failed to open endpoint")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	sess, err := s.sessions.create(req.Endpoint, pager, delay)
	switch {
	case errors.Is(err, errTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ID:       sess.id,
		Total:    sess.paged.Len(),
		PageSize: sess.paged.PageSize(),
		Pages:    sess.paged.PageCount(),
	})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		ID:            sess.id,
		Endpoint:      sess.endpoint,
		Total:         sess.paged.Len(),
		PageSize:      sess.paged.PageSize(),
		Pages:         sess.paged.PageCount(),
		ResolvedPages: sess.paged.ResolvedPages(),
		DelayMS:       sess.delay.Milliseconds(),
		CreatedAt:     sess.created,
	})
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	if index < 0 || index >= sess.model.Len() {
		itemRequests.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, fmt.Sprintf("index %d out of range", index))
		return
	}

	if peek, _ := strconv.ParseBool(r.URL.Query().Get("peek")); peek {
		itemRequests.WithLabelValues("peek").Inc()
		resp := itemResponse{Index: index, Resolved: sess.model.IsResolved(index)}
		if resp.Resolved {
			resp.Item = sess.model.Get(index)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	item, err := sess.model.Resolve(r.Context(), index)
	switch {
	case err == nil:
		itemRequests.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, itemResponse{Index: index, Resolved: true, Item: item})
	case pagination.IsCancelled(err):
		itemRequests.WithLabelValues("cancelled").Inc()
		s.logger.Debug().
			Str("session_id", sess.id).
			Int("index", index).
			Msg("Item request cancelled by client")
		writeError(w, statusClientClosedRequest, "request cancelled")
	case errors.Is(err, pagination.ErrIndexOutOfRange):
		itemRequests.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, err.Error())
	default:
		itemRequests.WithLabelValues("error").Inc()
		s.logger.Warn().
			Err(err).
			Str("session_id", sess.id).
			Int("index", index).
			Msg("Item resolve failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	from, to := 0, sess.model.Len()
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
		from = n
	}
	if raw := q.Get("to"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
		to = n
	}

	// Prefetch goes to the paged model directly; the resolve delay is for
	// interactive scrolling only.
	result, err := pagination.Prefetch[json.RawMessage](r.Context(), s.prefetcher, sess.paged, from, to)
	resp := prefetchResponse{
		Requested:  result.Requested,
		Resolved:   result.Resolved,
		Failed:     result.Failed,
		DurationMS: result.Duration.Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// session looks up the session named in the route and writes a 404 if it is gone.
func (s *server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.sessions.get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
