package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/booking"
	"github.com/wolfman30/careconnect-platform/internal/catalog"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/pharmacy"
	"github.com/wolfman30/careconnect-platform/internal/preferences"
	"github.com/wolfman30/careconnect-platform/internal/signup"
	"github.com/wolfman30/careconnect-platform/internal/submission"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

const testUser = "patient-1"

type testServer struct {
	router http.Handler
	feed   *notify.Feed
}

// asUser stands in for RequireUser; the X-Test-User header picks the caller.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			id = testUser
		}
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{UserID: id, UserType: identity.UserTypePatient})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	reg, err := catalog.Default()
	require.NoError(t, err)
	logger := logging.Discard()
	feed := notify.NewFeed(0)

	provider := identity.NewMemoryProvider(bcrypt.MinCost)
	require.NoError(t, identity.SeedDemoAccounts(context.Background(), provider))

	bookings := booking.NewService(reg, wizard.Options[booking.Draft]{
		Store:     wizard.NewMemoryStore[booking.Draft](0),
		Submitter: submission.NewSimulated[booking.Draft](submission.PrefixAppointment, logger).WithDelay(0),
		Notifier:  feed,
		Logger:    logger,
	})
	signups := signup.NewService(provider, nil, wizard.Options[signup.Draft]{
		Store:    wizard.NewMemoryStore[signup.Draft](0),
		Notifier: feed,
		Logger:   logger,
	})
	checkout := pharmacy.NewService(reg, wizard.Options[pharmacy.Draft]{
		Store:     wizard.NewMemoryStore[pharmacy.Draft](0),
		Submitter: submission.NewSimulated[pharmacy.Draft](submission.PrefixOrder, logger).WithDelay(0),
		Notifier:  feed,
		Logger:    logger,
	})
	authSvc := auth.NewService(provider, auth.NewTokens("test-secret", 0), preferences.NewMemoryStore(), nil, logger)

	notes := NewNotificationsHandler(feed, logger)
	authH := NewAuthHandler(authSvc, logger)
	catalogH := NewCatalogHandler(reg)

	r := chi.NewRouter()
	r.Post("/auth/login", authH.Login)
	r.Get("/auth/remembered-email", authH.RememberedEmail)
	r.Delete("/auth/remembered-email", authH.ForgetEmail)
	r.Get("/catalog/doctors", catalogH.Doctors)
	r.Get("/catalog/time-slots", catalogH.TimeSlots)
	r.Get("/catalog/medicines", catalogH.Medicines)
	r.Mount("/signup/sessions", NewSignupHandler(signups, logger).WithDiscardHook(notes.Forget).Routes())
	r.Get("/sessions/{id}/notifications", notes.Drain)
	r.Get("/sessions/{id}/notifications/ws", notes.Stream)
	r.Group(func(r chi.Router) {
		r.Use(asUser)
		r.Mount("/bookings/sessions", NewBookingHandler(bookings, logger).WithDiscardHook(notes.Forget).Routes())
		r.Mount("/checkout/sessions", NewCheckoutHandler(checkout, logger).WithDiscardHook(notes.Forget).Routes())
	})
	return testServer{router: r, feed: feed}
}

type response struct {
	Code int
	Body map[string]any
}

func (ts testServer) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	out := response{Code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.Body), rec.Body.String())
	}
	return out
}

func (r response) session(t *testing.T) map[string]any {
	t.Helper()
	s, ok := r.Body["session"].(map[string]any)
	require.True(t, ok, "response has no session: %v", r.Body)
	return s
}

func (r response) id(t *testing.T) string {
	t.Helper()
	return r.session(t)["id"].(string)
}

func (r response) step(t *testing.T) int {
	t.Helper()
	return int(r.session(t)["current_step"].(float64))
}

func (r response) draft(t *testing.T) map[string]any {
	t.Helper()
	return r.session(t)["draft"].(map[string]any)
}
