package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSAllowsListedOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"https://app.careconnect.test"})
	req := httptest.NewRequest(http.MethodGet, "/bookings/sessions", nil)
	req.Header.Set("Origin", "https://app.careconnect.test")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.careconnect.test" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allow methods header")
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatalf("expected allow headers header")
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"https://app.careconnect.test"})
	req := httptest.NewRequest(http.MethodGet, "/bookings/sessions", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/bookings/sessions", nil)
	req.Header.Set("Origin", "https://random.example")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://random.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"https://app.careconnect.test"})
	req := httptest.NewRequest(http.MethodOptions, "/bookings/sessions", nil)
	req.Header.Set("Origin", "https://app.careconnect.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected handler to not be called on preflight")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestCORSAllowsDeviceHeader(t *testing.T) {
	mw := CORS([]string{"https://app.careconnect.test"})
	req := httptest.NewRequest(http.MethodOptions, "/auth/remembered-email", nil)
	req.Header.Set("Origin", "https://app.careconnect.test")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	rec := httptest.NewRecorder()

	mw(http.NotFoundHandler()).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Device-Id") {
		t.Fatalf("expected X-Device-Id in allowed headers, got %q", got)
	}
}

func TestCORSRejectsPreflightFromUnknownOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	mw := CORS([]string{"https://app.careconnect.test"})
	req := httptest.NewRequest(http.MethodOptions, "/checkout/sessions", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected handler to not be called on rejected preflight")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("expected Vary: Origin, got %q", got)
	}
}

func TestCORSSubdomainPattern(t *testing.T) {
	mw := CORS([]string{"https://*.careconnect.test/"})
	cases := map[string]bool{
		"https://clinic.careconnect.test":      true,
		"https://a.b.careconnect.test":         true,
		"https://careconnect.test":             false,
		"http://clinic.careconnect.test":       false,
		"https://clinic.careconnect.test.evil": false,
		"https://evilcareconnect.test":         false,
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/catalog/doctors", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		mw(http.NotFoundHandler()).ServeHTTP(rec, req)

		got := rec.Header().Get("Access-Control-Allow-Origin") == origin
		if got != want {
			t.Fatalf("%s: expected allowed=%v", origin, want)
		}
	}
}

func TestCORSExposesRetryAfter(t *testing.T) {
	mw := CORS([]string{"https://app.careconnect.test"})
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
	req.Header.Set("Origin", "https://app.careconnect.test")
	rec := httptest.NewRecorder()

	mw(http.NotFoundHandler()).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Retry-After") {
		t.Fatalf("expected Retry-After exposed, got %q", got)
	}
}

func TestCORSWithoutOriginPassesThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()

	CORS(nil)(handler).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected non-browser request to reach the handler")
	}
	if rec.Header().Get("Vary") != "" {
		t.Fatalf("expected no Vary header without Origin")
	}
}
