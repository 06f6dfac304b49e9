package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingWizardOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	start := ts.do(t, http.MethodPost, "/bookings/sessions", nil)
	require.Equal(t, http.StatusCreated, start.Code)
	id := start.id(t)
	base := "/bookings/sessions/" + id
	assert.Equal(t, 1, start.step(t))
	assert.Equal(t, float64(3), start.Body["total_steps"])
	assert.Equal(t, false, start.Body["can_advance"])
	assert.Equal(t, false, start.Body["can_retreat"])

	res := ts.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Equal(t, "validation_error", res.Body["code"])
	assert.Contains(t, res.Body["fields"], "doctor_id")
	assert.Equal(t, 1, ts.do(t, http.MethodGet, base, nil).step(t))

	res = ts.do(t, http.MethodPost, base+"/retreat", nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "invalid_transition", res.Body["code"])

	res = ts.do(t, http.MethodPut, base+"/doctor", map[string]string{"doctor_id": "dr-emily-rodriguez"})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "unavailable", res.Body["code"])

	res = ts.do(t, http.MethodPut, base+"/doctor", map[string]string{"doctor_id": "dr-nobody"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Equal(t, "unknown_option", res.Body["code"])

	res = ts.do(t, http.MethodPut, base+"/doctor", map[string]string{"doctor_id": "dr-sarah-johnson"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "dr-sarah-johnson", res.draft(t)["doctor_id"])
	assert.Equal(t, float64(15000), res.Body["total_cents"])
	assert.Equal(t, true, res.Body["can_advance"])

	require.Equal(t, 2, ts.do(t, http.MethodPost, base+"/advance", nil).step(t))

	res = ts.do(t, http.MethodPut, base+"/schedule", map[string]string{"date": "2024-12-20", "time": "09:30 AM", "modality": "phone"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = ts.do(t, http.MethodPut, base+"/schedule", map[string]string{"date": "2024-12-20", "time": "10:00 AM", "modality": "phone"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, float64(13000), res.Body["total_cents"])

	quote := ts.do(t, http.MethodGet, base+"/quote", nil)
	require.Equal(t, http.StatusOK, quote.Code)
	assert.Equal(t, float64(15000), quote.Body["base_cents"])
	assert.Equal(t, float64(-2000), quote.Body["adjustment_cents"])
	assert.Equal(t, float64(13000), quote.Body["total_cents"])

	require.Equal(t, 3, ts.do(t, http.MethodPost, base+"/advance", nil).step(t))

	res = ts.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, res.Code, "advance never passes the final step")

	res = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body["fields"], "patient_name")

	res = ts.do(t, http.MethodPut, base+"/patient", map[string]string{
		"name": "Pat Patient", "email": "pat@careconnect.test", "phone": "+1 555 010 0001", "reason": "Checkup",
	})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["can_submit"])

	res = ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, res.Code)
	session := res.session(t)
	assert.Equal(t, "complete", session["status"])
	assert.Equal(t, 4, res.step(t))
	receipt := session["receipt"].(map[string]any)
	assert.Regexp(t, `^APT-[0-9A-Z]+$`, receipt["reference"])
	assert.Equal(t, float64(13000), receipt["total_cents"])

	res = ts.do(t, http.MethodPost, base+"/retreat", nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	res = ts.do(t, http.MethodPut, base+"/patient", map[string]string{"name": "Changed"})
	assert.Equal(t, http.StatusConflict, res.Code)

	notes := ts.do(t, http.MethodGet, "/sessions/"+id+"/notifications", nil)
	require.Equal(t, http.StatusOK, notes.Code)
	items := notes.Body["notifications"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "success", items[0].(map[string]any)["level"])
}

func TestBookingSessionsAreScopedToCaller(t *testing.T) {
	ts := newTestServer(t)
	id := ts.do(t, http.MethodPost, "/bookings/sessions", nil).id(t)

	res := ts.do(t, http.MethodGet, "/bookings/sessions/"+id, nil, "X-Test-User", "patient-2")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "not_found", res.Body["code"])

	res = ts.do(t, http.MethodDelete, "/bookings/sessions/"+id, nil, "X-Test-User", "patient-2")
	assert.Equal(t, http.StatusNoContent, res.Code, "discarding is idempotent and reveals nothing")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/bookings/sessions/"+id, nil).Code)
}

func TestBookingDiscardAndBadBody(t *testing.T) {
	ts := newTestServer(t)
	id := ts.do(t, http.MethodPost, "/bookings/sessions", nil).id(t)
	base := "/bookings/sessions/" + id

	res := ts.do(t, http.MethodPut, base+"/doctor", map[string]any{"doctor": 42})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "bad_request", res.Body["code"])

	res = ts.do(t, http.MethodPut, base+"/schedule", map[string]string{"date": "20/12/2024"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body["fields"], "date")

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, base+"/quote", nil).Code)
}
