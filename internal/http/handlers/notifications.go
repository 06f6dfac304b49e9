package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// NotificationsHandler exposes the toast feed of a session by polling or
// over a websocket.
type NotificationsHandler struct {
	feed   *notify.Feed
	logger *logging.Logger
}

func NewNotificationsHandler(feed *notify.Feed, logger *logging.Logger) *NotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationsHandler{feed: feed, logger: logger}
}

// Drain returns and clears pending toasts, oldest first.
// GET /sessions/{id}/notifications
func (h *NotificationsHandler) Drain(w http.ResponseWriter, r *http.Request) {
	items := h.feed.Drain(chi.URLParam(r, "id"))
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// Stream pushes toasts as they are raised. Pending toasts are flushed first.
// GET /sessions/{id}/notifications/ws
func (h *NotificationsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, id)
	}).ServeHTTP(w, r)
}

func (h *NotificationsHandler) serveWS(conn *websocket.Conn, sessionID string) {
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(sessionID)
	defer cancel()

	sent := make(map[string]struct{})
	for _, n := range h.feed.Drain(sessionID) {
		if err := websocket.JSON.Send(conn, n); err != nil {
			return
		}
		sent[n.ID] = struct{}{}
	}

	// The client never sends anything useful; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard json.RawMessage
		for {
			if err := websocket.JSON.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case n, ok := <-updates:
			if !ok {
				return
			}
			if _, dup := sent[n.ID]; dup {
				continue
			}
			if err := websocket.JSON.Send(conn, n); err != nil {
				h.logger.Debug("notifications: send failed", "session_id", sessionID, "error", err)
				return
			}
		case <-closed:
			return
		}
	}
}

// Forget drops pending toasts for a discarded session.
func (h *NotificationsHandler) Forget(sessionID string) {
	h.feed.Forget(sessionID)
}
