package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/careconnect-platform/internal/http/middleware"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Tokens         *auth.Tokens
	Auth           *handlers.AuthHandler
	Catalog        *handlers.CatalogHandler
	Bookings       *handlers.BookingHandler
	Signup         *handlers.SignupHandler
	Checkout       *handlers.CheckoutHandler
	Notifications  *handlers.NotificationsHandler
	Health         http.Handler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string

	// Login throttling per client IP; zero rate disables it.
	LoginRateLimit float64
	LoginBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Method(http.MethodGet, "/health", health)
		if cfg.MetricsHandler != nil {
			public.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
		}

		if cfg.Auth != nil {
			public.Route("/auth", func(r chi.Router) {
				r.Group(func(login chi.Router) {
					if cfg.LoginRateLimit > 0 {
						login.Use(httpmiddleware.RateLimit(cfg.LoginRateLimit, cfg.LoginBurst))
					}
					login.Post("/login", cfg.Auth.Login)
				})
				r.Get("/remembered-email", cfg.Auth.RememberedEmail)
				r.Delete("/remembered-email", cfg.Auth.ForgetEmail)
			})
		}

		if cfg.Catalog != nil {
			public.Route("/catalog", func(r chi.Router) {
				r.Get("/doctors", cfg.Catalog.Doctors)
				r.Get("/time-slots", cfg.Catalog.TimeSlots)
				r.Get("/medicines", cfg.Catalog.Medicines)
			})
		}

		if cfg.Signup != nil {
			public.Mount("/signup/sessions", cfg.Signup.Routes())
		}

		if cfg.Notifications != nil {
			public.Get("/sessions/{id}/notifications", cfg.Notifications.Drain)
			public.Get("/sessions/{id}/notifications/ws", cfg.Notifications.Stream)
		}
	})

	// Patient wizards
	r.Group(func(patient chi.Router) {
		patient.Use(httpmiddleware.RequireUser(cfg.Tokens, identity.UserTypePatient))
		if cfg.Bookings != nil {
			patient.Mount("/bookings/sessions", cfg.Bookings.Routes())
		}
		if cfg.Checkout != nil {
			patient.Mount("/checkout/sessions", cfg.Checkout.Routes())
		}
	})

	return r
}
