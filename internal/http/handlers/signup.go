package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/careconnect-platform/internal/signup"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// SignupHandler serves the public registration wizard. Sessions are not tied
// to a caller; the unguessable session id is the capability.
type SignupHandler struct {
	service  *signup.Service
	sessions *sessionRoutes[signup.Draft]
}

func NewSignupHandler(service *signup.Service, logger *logging.Logger) *SignupHandler {
	sessions := newSessionRoutes(service.Engine(), logger)
	sessions.owner = anonymousOwner
	sessions.view = signup.Redact
	return &SignupHandler{service: service, sessions: sessions}
}

// WithDiscardHook runs fn after a session is discarded.
func (h *SignupHandler) WithDiscardHook(fn func(sessionID string)) *SignupHandler {
	h.sessions.onDiscard = fn
	return h
}

// Routes mounts under /signup/sessions.
func (h *SignupHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	h.sessions.mount(r)
	r.Put("/{id}/account", h.SetAccount)
	r.Put("/{id}/profile", h.SetProfile)
	r.Put("/{id}/terms", h.SetTerms)
	return r
}

// Start opens a signup, optionally preselecting the account type.
// POST /signup/sessions
func (h *SignupHandler) Start(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserType string `json:"user_type"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.sessions.logger, err)
		return
	}
	s, err := h.service.Start(r.Context(), in.UserType)
	h.sessions.respond(w, http.StatusCreated, s, err)
}

// PUT /signup/sessions/{id}/account
func (h *SignupHandler) SetAccount(w http.ResponseWriter, r *http.Request) {
	var in signup.Account
	update(h.sessions, w, r, &in, func(ctx context.Context, id, _ string) (*wizard.State[signup.Draft], error) {
		return h.service.SetAccount(ctx, id, in)
	})
}

// PUT /signup/sessions/{id}/profile
func (h *SignupHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	var in signup.Profile
	update(h.sessions, w, r, &in, func(ctx context.Context, id, _ string) (*wizard.State[signup.Draft], error) {
		return h.service.SetProfile(ctx, id, in)
	})
}

// PUT /signup/sessions/{id}/terms
func (h *SignupHandler) SetTerms(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Accepted bool `json:"accepted"`
	}
	update(h.sessions, w, r, &in, func(ctx context.Context, id, _ string) (*wizard.State[signup.Draft], error) {
		return h.service.SetTerms(ctx, id, in.Accepted)
	})
}
