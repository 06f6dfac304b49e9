package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/pharmacy"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

const maxBodyBytes = 64 << 10

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto HTTP statuses. Anything unclassified is
// logged and reported as a 500 without leaking its text.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorResponse) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorResponse{Error: "step incomplete", Code: "validation_error", Fields: verr.Fields}
	case errors.Is(err, wizard.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Error: "session not found", Code: "not_found"}
	case errors.Is(err, pharmacy.ErrItemNotInCart):
		return http.StatusNotFound, errorResponse{Error: "item not in cart", Code: "not_found"}
	case errors.Is(err, wizard.ErrAtFirstStep),
		errors.Is(err, wizard.ErrFinalStep),
		errors.Is(err, wizard.ErrNotFinalStep),
		errors.Is(err, wizard.ErrSubmitting),
		errors.Is(err, wizard.ErrTerminal):
		return http.StatusConflict, errorResponse{Error: transitionMessage(err), Code: "invalid_transition"}
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusConflict, errorResponse{Error: "option is not available", Code: "unavailable"}
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusUnprocessableEntity, errorResponse{Error: "unknown option", Code: "unknown_option"}
	case errors.Is(err, wizard.ErrRejected):
		return http.StatusUnprocessableEntity, errorResponse{Error: "submission was rejected", Code: "rejected"}
	case errors.Is(err, wizard.ErrNetwork), errors.Is(err, auth.ErrNetwork):
		return http.StatusBadGateway, errorResponse{Error: "upstream service unavailable, please retry", Code: "network_error"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid email or password", Code: "invalid_credentials"}
	case errors.Is(err, auth.ErrAccountDisabled):
		return http.StatusForbidden, errorResponse{Error: "account disabled", Code: "account_disabled"}
	case errors.Is(err, auth.ErrAccountPendingVerification):
		return http.StatusForbidden, errorResponse{Error: "account pending verification", Code: "account_pending_verification"}
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
}

func transitionMessage(err error) string {
	switch {
	case errors.Is(err, wizard.ErrAtFirstStep):
		return "already at the first step"
	case errors.Is(err, wizard.ErrFinalStep):
		return "final step must be submitted"
	case errors.Is(err, wizard.ErrNotFinalStep):
		return "submit is only allowed on the final step"
	case errors.Is(err, wizard.ErrSubmitting):
		return "submission in progress"
	default:
		return "session already completed"
	}
}

var errBadRequest = errors.New("invalid request body")

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errBadRequest
	}
	return nil
}
