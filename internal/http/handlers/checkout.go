package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/careconnect-platform/internal/pharmacy"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// CheckoutHandler serves the pharmacy checkout wizard.
type CheckoutHandler struct {
	service  *pharmacy.Service
	sessions *sessionRoutes[pharmacy.Draft]
	logger   *logging.Logger
}

func NewCheckoutHandler(service *pharmacy.Service, logger *logging.Logger) *CheckoutHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{
		service:  service,
		sessions: newSessionRoutes(service.Engine(), logger),
		logger:   logger,
	}
}

// WithDiscardHook runs fn after a session is discarded.
func (h *CheckoutHandler) WithDiscardHook(fn func(sessionID string)) *CheckoutHandler {
	h.sessions.onDiscard = fn
	return h
}

// Routes mounts under /checkout/sessions behind RequireUser.
func (h *CheckoutHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	h.sessions.mount(r)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{medicineID}", h.SetQuantity)
	r.Delete("/{id}/items/{medicineID}", h.RemoveItem)
	r.Put("/{id}/prescription", h.SetPrescription)
	r.Put("/{id}/shipping", h.SetShipping)
	r.Put("/{id}/payment", h.SetPayment)
	r.Get("/{id}/quote", h.Quote)
	return r
}

// POST /checkout/sessions
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Start(r.Context(), principalOwner(r))
	h.sessions.respond(w, http.StatusCreated, s, err)
}

// AddItem adds a medicine, merging with an existing line. Quantity defaults
// to one.
// POST /checkout/sessions/{id}/items
func (h *CheckoutHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	in := struct {
		MedicineID string `json:"medicine_id"`
		Quantity   int    `json:"quantity"`
	}{Quantity: 1}
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[pharmacy.Draft], error) {
		return h.service.AddItem(ctx, id, owner, in.MedicineID, in.Quantity)
	})
}

// SetQuantity changes a line; zero removes it.
// PATCH /checkout/sessions/{id}/items/{medicineID}
func (h *CheckoutHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity *int `json:"quantity"`
	}
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[pharmacy.Draft], error) {
		if in.Quantity == nil {
			return nil, wizard.FieldError("cart", "quantity", "is required")
		}
		return h.service.SetQuantity(ctx, id, owner, chi.URLParam(r, "medicineID"), *in.Quantity)
	})
}

// DELETE /checkout/sessions/{id}/items/{medicineID}
func (h *CheckoutHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "id"), principalOwner(r), chi.URLParam(r, "medicineID"))
	h.sessions.respond(w, http.StatusOK, s, err)
}

// PUT /checkout/sessions/{id}/prescription
func (h *CheckoutHandler) SetPrescription(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PrescriptionRef string `json:"prescription_ref"`
	}
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[pharmacy.Draft], error) {
		return h.service.SetPrescription(ctx, id, owner, in.PrescriptionRef)
	})
}

// PUT /checkout/sessions/{id}/shipping
func (h *CheckoutHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	var in pharmacy.Shipping
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[pharmacy.Draft], error) {
		return h.service.SetShipping(ctx, id, owner, in)
	})
}

// PUT /checkout/sessions/{id}/payment
func (h *CheckoutHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PaymentMethod string `json:"payment_method"`
	}
	update(h.sessions, w, r, &in, func(ctx context.Context, id, owner string) (*wizard.State[pharmacy.Draft], error) {
		return h.service.SetPayment(ctx, id, owner, in.PaymentMethod)
	})
}

// Quote itemises the cart with subtotal, delivery fee and total.
// GET /checkout/sessions/{id}/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Quote(r.Context(), chi.URLParam(r, "id"), principalOwner(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
