package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/careconnect-platform/internal/booking"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// BookingHandler serves the appointment booking wizard.
type BookingHandler struct {
	service  *booking.Service
	sessions *sessionRoutes[booking.Draft]
	logger   *logging.Logger
}

func NewBookingHandler(service *booking.Service, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{
		service:  service,
		sessions: newSessionRoutes(service.Engine(), logger),
		logger:   logger,
	}
}

// WithDiscardHook runs fn after a session is discarded.
func (h *BookingHandler) WithDiscardHook(fn func(sessionID string)) *BookingHandler {
	h.sessions.onDiscard = fn
	return h
}

// Routes mounts under /bookings/sessions behind RequireUser.
func (h *BookingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	h.sessions.mount(r)
	r.Put("/{id}/doctor", h.SelectDoctor)
	r.Put("/{id}/schedule", h.SetSchedule)
	r.Put("/{id}/patient", h.SetPatient)
	r.Get("/{id}/quote", h.Quote)
	return r
}

// Start opens a booking for the caller.
// POST /bookings/sessions
func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Start(r.Context(), principalOwner(r))
	h.sessions.respond(w, http.StatusCreated, s, err)
}

// SelectDoctor sets step 1.
// PUT /bookings/sessions/{id}/doctor
func (h *BookingHandler) SelectDoctor(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DoctorID string `json:"doctor_id"`
	}
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[booking.Draft], error) {
		return h.service.SelectDoctor(ctx, id, owner, in.DoctorID)
	})
}

// SetSchedule sets step 2.
// PUT /bookings/sessions/{id}/schedule
func (h *BookingHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	var in booking.Schedule
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[booking.Draft], error) {
		return h.service.SetSchedule(ctx, id, owner, in)
	})
}

// SetPatient sets step 3.
// PUT /bookings/sessions/{id}/patient
func (h *BookingHandler) SetPatient(w http.ResponseWriter, r *http.Request) {
	var in booking.Patient
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[booking.Draft], error) {
		return h.service.SetPatient(ctx, id, owner, in)
	})
}

// Quote prices the selected doctor and modality.
// GET /bookings/sessions/{id}/quote
func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Quote(r.Context(), chi.URLParam(r, "id"), principalOwner(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
