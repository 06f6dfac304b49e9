package handlers

import (
	"net/http"
	"strings"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// DeviceHeader identifies the browser for the remember-email preference.
const DeviceHeader = "X-Device-Id"

// AuthHandler serves login and the remember-email preference.
type AuthHandler struct {
	service *auth.Service
	logger  *logging.Logger
}

func NewAuthHandler(service *auth.Service, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{service: service, logger: logger}
}

// Login exchanges credentials for a session token and dashboard redirect.
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.DeviceID = deviceID(r)
	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rememberedEmailResponse struct {
	Email      string `json:"email"`
	Remembered bool   `json:"remembered"`
}

// RememberedEmail pre-fills the login form for this device.
// GET /auth/remembered-email
func (h *AuthHandler) RememberedEmail(w http.ResponseWriter, r *http.Request) {
	device := deviceID(r)
	if device == "" {
		writeJSON(w, http.StatusOK, rememberedEmailResponse{})
		return
	}
	email, ok, err := h.service.RememberedEmail(r.Context(), device)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rememberedEmailResponse{Email: email, Remembered: ok})
}

// ForgetEmail clears the preference for this device.
// DELETE /auth/remembered-email
func (h *AuthHandler) ForgetEmail(w http.ResponseWriter, r *http.Request) {
	device := deviceID(r)
	if device == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.service.ForgetEmail(r.Context(), device); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func deviceID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(DeviceHeader))
}
