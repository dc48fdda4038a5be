package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapolap/internal/engine"
	"github.com/leapstack-labs/leapolap/internal/notifier"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

// Handlers provides the HTTP handlers of the API.
type Handlers struct {
	engine   *engine.Engine
	nonEmpty bool
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, nonEmpty bool, logger *slog.Logger) *Handlers {
	return &Handlers{engine: eng, nonEmpty: nonEmpty, logger: logger}
}

// Member is the JSON form of a member.
type Member struct {
	UniqueName string `json:"uniqueName"`
	Name       string `json:"name"`
	Level      string `json:"level,omitempty"`
	Key        any    `json:"key"`
	Ordinal    int    `json:"ordinal"`
	Depth      int    `json:"depth"`
	Calculated bool   `json:"calculated,omitempty"`
}

func toMember(m core.Member) Member {
	out := Member{
		UniqueName: m.UniqueName(),
		Name:       m.Name(),
		Key:        m.Key(),
		Ordinal:    m.Ordinal(),
		Depth:      m.Depth(),
		Calculated: m.IsCalculated(),
	}
	if m.Level() != nil {
		out.Level = m.Level().UniqueName()
	}
	return out
}

func toMembers(ms []core.Member) []Member {
	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMember(m))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.logger.Debug("request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// request reads the evaluation context from the cube path parameter and
// the role, context, measure and nonEmpty query parameters.
func (h *Handlers) request(r *http.Request) (engine.Request, error) {
	q := r.URL.Query()
	req := engine.Request{
		Cube:     chi.URLParam(r, "cube"),
		Role:     q.Get("role"),
		Context:  q["context"],
		Measure:  q.Get("measure"),
		NonEmpty: h.nonEmpty,
	}
	if v := q.Get("nonEmpty"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid nonEmpty %q", v)
		}
		req.NonEmpty = b
	}
	return req, nil
}

func required(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("query parameter %q is required", name)
	}
	return v, nil
}

// Cubes lists the cubes of the schema.
func (h *Handlers) Cubes(w http.ResponseWriter, _ *http.Request) {
	type cube struct {
		Name        string   `json:"name"`
		Virtual     bool     `json:"virtual"`
		Hierarchies []string `json:"hierarchies"`
		Measures    []string `json:"measures"`
	}
	s := h.engine.Schema()
	out := make([]cube, 0, len(s.Cubes))
	for _, c := range s.Cubes {
		item := cube{Name: c.Name(), Virtual: c.IsVirtual()}
		for _, hier := range c.Hierarchies() {
			item.Hierarchies = append(item.Hierarchies, hier.UniqueName())
		}
		for _, m := range c.Measures() {
			item.Measures = append(item.Measures, m.Name())
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// LevelMembers handles GET /api/cubes/{cube}/members?level=.
func (h *Handlers) LevelMembers(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	level, err := required(r, "level")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	ms, err := h.engine.LevelMembers(r.Context(), req, level)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembers(ms))
}

// Children handles GET /api/cubes/{cube}/children?member=.
func (h *Handlers) Children(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	member, err := required(r, "member")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	ms, err := h.engine.Children(r.Context(), req, member)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembers(ms))
}

// Lookup handles GET /api/cubes/{cube}/lookup?member=. A missing member
// is a 404.
func (h *Handlers) Lookup(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	member, err := required(r, "member")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	m, err := h.engine.Lookup(r.Context(), req, member, false)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if m == nil {
		h.writeError(w, r, http.StatusNotFound, fmt.Errorf("member %s not found", member))
		return
	}
	writeJSON(w, http.StatusOK, toMember(m))
}

// Lead handles GET /api/cubes/{cube}/lead?member=&n=.
func (h *Handlers) Lead(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	member, err := required(r, "member")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid n: %w", err))
		return
	}
	m, err := h.engine.Lead(r.Context(), req, member, n)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if m == nil {
		h.writeError(w, r, http.StatusNotFound, fmt.Errorf("no member %d away from %s", n, member))
		return
	}
	writeJSON(w, http.StatusOK, toMember(m))
}

// Tuples handles GET /api/cubes/{cube}/tuples?level=&level=&limit=.
func (h *Handlers) Tuples(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	levels := r.URL.Query()["level"]
	if len(levels) == 0 {
		h.writeError(w, r, http.StatusBadRequest, errors.New(`query parameter "level" is required`))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
	}
	tuples, err := h.engine.Tuples(r.Context(), req, levels, limit)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	out := make([][]Member, 0, len(tuples))
	for _, tuple := range tuples {
		out = append(out, toMembers(tuple))
	}
	writeJSON(w, http.StatusOK, out)
}

// PredicateRequest is the body of POST /api/cubes/{cube}/predicate.
type PredicateRequest struct {
	Tuples [][]string `json:"tuples"`
}

// PredicateResponse describes a compound predicate.
type PredicateResponse struct {
	SQL         string `json:"sql,omitempty"`
	Columns     []int  `json:"columns"`
	Groups      int    `json:"groups"`
	Satisfiable bool   `json:"satisfiable"`
	Dropped     int    `json:"dropped"`
}

// Predicate builds the compound predicate of the posted tuples.
func (h *Handlers) Predicate(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	var body PredicateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	info, err := h.engine.CompoundPredicate(r.Context(), req, body.Tuples)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	resp := PredicateResponse{
		Columns:     info.BitKey().Positions(),
		Groups:      len(info.Groups()),
		Satisfiable: info.IsSatisfiable(),
		Dropped:     info.UnsatisfiableCount(),
	}
	if info.Predicate() != nil {
		resp.SQL = info.PredicateString()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChangeRequest is the body of the flush and invalidate endpoints.
type ChangeRequest struct {
	Hierarchy string `json:"hierarchy"`
	Member    string `json:"member"`
	Reason    string `json:"reason"`
}

func decodeChange(r *http.Request) (ChangeRequest, error) {
	var body ChangeRequest
	if r.ContentLength == 0 {
		return body, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, fmt.Errorf("invalid body: %w", err)
	}
	return body, nil
}

// Flush handles POST /api/flush. An empty hierarchy flushes all of them.
func (h *Handlers) Flush(w http.ResponseWriter, r *http.Request) {
	body, err := decodeChange(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.engine.Flush(r.Context(), body.Hierarchy, body.Reason); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invalidate handles POST /api/invalidate.
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeChange(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if body.Member == "" {
		h.writeError(w, r, http.StatusBadRequest, errors.New("member is required"))
		return
	}
	if err := h.engine.Invalidate(r.Context(), body.Member, body.Reason); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Changes handles GET /api/changes?since=&limit=.
func (h *Handlers) Changes(w http.ResponseWriter, r *http.Request) {
	var (
		since int64
		limit = 100
		err   error
	)
	if v := r.URL.Query().Get("since"); v != "" {
		if since, err = strconv.ParseInt(v, 10, 64); err != nil {
			h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
	}
	events, err := h.engine.Changes(r.Context(), since, limit)
	if errors.Is(err, engine.ErrNoChangeLog) {
		h.writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// changeSignals is the signal payload pushed to event stream clients.
type changeSignals struct {
	Change notifier.Change `json:"change"`
}

// Events is the long-lived SSE endpoint. It pushes the latest change as
// a signal patch, then every change the engine applies.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.engine.Notifier().Subscribe()
	defer h.engine.Notifier().Unsubscribe(updates)

	if last := h.engine.Notifier().Last(); last.Seq > 0 {
		if err := sse.MarshalAndPatchSignals(changeSignals{Change: last}); err != nil {
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(changeSignals{Change: c}); err != nil {
				_ = sse.ConsoleError(err)
				return
			}
		}
	}
}
