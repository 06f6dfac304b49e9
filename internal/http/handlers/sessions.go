package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// StepInfo describes one step for progress indicators.
type StepInfo struct {
	Number int    `json:"number"`
	Key    string `json:"key"`
	Title  string `json:"title"`
}

// SessionResponse is the body returned by every session endpoint.
type SessionResponse struct {
	Session    any        `json:"session"`
	Steps      []StepInfo `json:"steps"`
	TotalSteps int        `json:"total_steps"`
	CanAdvance bool       `json:"can_advance"`
	CanRetreat bool       `json:"can_retreat"`
	CanSubmit  bool       `json:"can_submit"`
	TotalCents int64      `json:"total_cents"`
}

// sessionRoutes serves the operations every wizard shares.
type sessionRoutes[T any] struct {
	engine    *wizard.Engine[T]
	owner     func(r *http.Request) string
	view      func(*wizard.State[T]) any
	onDiscard func(sessionID string)
	logger    *logging.Logger
}

func newSessionRoutes[T any](engine *wizard.Engine[T], logger *logging.Logger) *sessionRoutes[T] {
	if logger == nil {
		logger = logging.Default()
	}
	return &sessionRoutes[T]{
		engine: engine,
		owner:  principalOwner,
		view:   func(s *wizard.State[T]) any { return s },
		logger: logger.With("flow", engine.Flow().Name()),
	}
}

// principalOwner scopes sessions to the authenticated caller.
func principalOwner(r *http.Request) string {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p.UserID
}

func anonymousOwner(*http.Request) string { return "" }

func (h *sessionRoutes[T]) mount(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Post("/{id}/advance", h.advance)
	r.Post("/{id}/retreat", h.retreat)
	r.Post("/{id}/submit", h.submit)
	r.Delete("/{id}", h.discard)
}

func (h *sessionRoutes[T]) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"), h.owner(r))
	h.respond(w, http.StatusOK, s, err)
}

func (h *sessionRoutes[T]) advance(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.engine.Advance)
}

func (h *sessionRoutes[T]) retreat(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.engine.Retreat)
}

func (h *sessionRoutes[T]) submit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.engine.Submit)
}

func (h *sessionRoutes[T]) discard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.Discard(r.Context(), id, h.owner(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.onDiscard != nil {
		h.onDiscard(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionFunc[T any] func(ctx context.Context, id, owner string) (*wizard.State[T], error)

func (h *sessionRoutes[T]) run(w http.ResponseWriter, r *http.Request, op transitionFunc[T]) {
	s, err := op(r.Context(), chi.URLParam(r, "id"), h.owner(r))
	h.respond(w, http.StatusOK, s, err)
}

// update applies a flow-specific edit after decoding its body into in.
func update[T, In any](h *sessionRoutes[T], w http.ResponseWriter, r *http.Request, in *In, apply func(ctx context.Context, id, owner string) (*wizard.State[T], error)) {
	if err := decodeJSON(w, r, in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	s, err := apply(r.Context(), chi.URLParam(r, "id"), h.owner(r))
	h.respond(w, http.StatusOK, s, err)
}

func (h *sessionRoutes[T]) respond(w http.ResponseWriter, status int, s *wizard.State[T], err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, status, h.present(s))
}

func (h *sessionRoutes[T]) present(s *wizard.State[T]) SessionResponse {
	flow := h.engine.Flow()
	steps := make([]StepInfo, 0, flow.Len())
	for i, st := range flow.Steps() {
		steps = append(steps, StepInfo{Number: i + 1, Key: st.Key, Title: st.Title})
	}
	return SessionResponse{
		Session:    h.view(s),
		Steps:      steps,
		TotalSteps: flow.Len(),
		CanAdvance: flow.CanAdvance(s),
		CanRetreat: flow.CanRetreat(s),
		CanSubmit:  flow.CanSubmit(s),
		TotalCents: h.engine.Total(s.Draft),
	}
}
