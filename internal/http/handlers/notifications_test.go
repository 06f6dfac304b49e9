package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/pharmacy"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
)

func TestNotificationsDrainEmpty(t *testing.T) {
	ts := newTestServer(t)
	res := ts.do(t, http.MethodGet, "/sessions/unknown/notifications", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []any{}, res.Body["notifications"])
}

func TestNotificationsStreamOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, ts.feed.Notify(ctx, notify.Notification{SessionID: "s1", Level: notify.LevelInfo, Title: "queued"}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/s1/notifications/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var first notify.Notification
	require.NoError(t, websocket.JSON.Receive(conn, &first))
	assert.Equal(t, "queued", first.Title)

	// The subscription is registered before the backlog is flushed.
	require.NoError(t, ts.feed.Notify(ctx, notify.Notification{SessionID: "s1", Level: notify.LevelSuccess, Title: "live"}))
	var second notify.Notification
	require.NoError(t, websocket.JSON.Receive(conn, &second))
	assert.Equal(t, "live", second.Title)
	assert.Equal(t, notify.LevelSuccess, second.Level)

	// Toasts already streamed are not replayed to a later poll.
	resp := ts.do(t, http.MethodGet, "/sessions/s1/notifications", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Body["notifications"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{wizard.FieldError("doctor", "doctor_id", "is required"), http.StatusUnprocessableEntity, "validation_error"},
		{wizard.ErrSessionNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: x", pharmacy.ErrItemNotInCart), http.StatusNotFound, "not_found"},
		{wizard.ErrAtFirstStep, http.StatusConflict, "invalid_transition"},
		{wizard.ErrFinalStep, http.StatusConflict, "invalid_transition"},
		{wizard.ErrNotFinalStep, http.StatusConflict, "invalid_transition"},
		{wizard.ErrSubmitting, http.StatusConflict, "invalid_transition"},
		{wizard.ErrTerminal, http.StatusConflict, "invalid_transition"},
		{fmt.Errorf("%w: dr-x", catalog.ErrUnavailable), http.StatusConflict, "unavailable"},
		{fmt.Errorf("%w: dr-x", catalog.ErrNotFound), http.StatusUnprocessableEntity, "unknown_option"},
		{fmt.Errorf("%w: dup", wizard.ErrRejected), http.StatusUnprocessableEntity, "rejected"},
		{fmt.Errorf("%w: timeout", wizard.ErrNetwork), http.StatusBadGateway, "network_error"},
		{auth.ErrNetwork, http.StatusBadGateway, "network_error"},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{auth.ErrAccountDisabled, http.StatusForbidden, "account_disabled"},
		{auth.ErrAccountPendingVerification, http.StatusForbidden, "account_pending_verification"},
		{errBadRequest, http.StatusBadRequest, "bad_request"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, body := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEqual(t, "boom", body.Error)
		})
	}
}
