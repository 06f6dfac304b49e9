package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/careconnect-platform/cmd/mainconfig"
	"github.com/wolfman30/careconnect-platform/internal/api/router"
	"github.com/wolfman30/careconnect-platform/internal/app/bootstrap"
	"github.com/wolfman30/careconnect-platform/internal/auth"
	"github.com/wolfman30/careconnect-platform/internal/booking"
	"github.com/wolfman30/careconnect-platform/internal/catalog"
	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/http/handlers"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/internal/pharmacy"
	"github.com/wolfman30/careconnect-platform/internal/pricing"
	"github.com/wolfman30/careconnect-platform/internal/signup"
	"github.com/wolfman30/careconnect-platform/internal/submission"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// app holds everything main wires together.
type app struct {
	logger  *logging.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	metrics http.Handler
	tokens  *auth.Tokens

	auth          *handlers.AuthHandler
	catalog       *handlers.CatalogHandler
	bookings      *handlers.BookingHandler
	checkout      *handlers.CheckoutHandler
	signup        *handlers.SignupHandler
	notifications *handlers.NotificationsHandler
	health        *handlers.HealthHandler
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	metricsHandler, wizardMetrics := setupMetrics()

	reg, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	if err := pricing.CheckRegistry(reg); err != nil {
		return nil, fmt.Errorf("catalog prices: %w", err)
	}

	tokens, err := buildTokens(cfg, logger)
	if err != nil {
		return nil, err
	}

	clients, err := mainconfig.NewClients(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Info("redis not configured, wizard sessions are kept in memory")
	}

	provider, err := bootstrap.BuildIdentityProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	feed := notify.NewFeed(0).WithTTL(cfg.SessionTTL)
	sender := bootstrap.BuildEmailSender(cfg, clients.SES, logger)
	notifier := notify.Multi(feed, notify.NewEmailNotifier(sender, logger))

	deps := bootstrap.SubmitDeps{SQS: clients.SQS}
	if pool != nil {
		deps.Receipts = submission.NewReceiptRepository(pool)
	}

	bookingSubmitter, err := bootstrap.BuildSubmitter[booking.Draft](cfg, deps, submission.PrefixAppointment, logger)
	if err != nil {
		return nil, err
	}
	orderSubmitter, err := bootstrap.BuildSubmitter[pharmacy.Draft](cfg, deps, submission.PrefixOrder, logger)
	if err != nil {
		return nil, err
	}

	bookings := booking.NewService(reg, wizard.Options[booking.Draft]{
		Store:     bootstrap.BuildSessionStore[booking.Draft](redisClient, "booking", cfg.SessionTTL),
		Submitter: bookingSubmitter,
		Notifier:  notifier,
		Metrics:   wizardMetrics,
		Logger:    logger,

		SubmitTimeout: cfg.SubmitTotalTimeout,
	})
	checkout := pharmacy.NewService(reg, wizard.Options[pharmacy.Draft]{
		Store:     bootstrap.BuildSessionStore[pharmacy.Draft](redisClient, "checkout", cfg.SessionTTL),
		Submitter: orderSubmitter,
		Notifier:  notifier,
		Metrics:   wizardMetrics,
		Logger:    logger,

		SubmitTimeout: cfg.SubmitTotalTimeout,
	})
	sealer, err := signup.NewSealer(cfg.AuthJWTSecret)
	if err != nil {
		return nil, err
	}
	signups := signup.NewService(provider, sealer, wizard.Options[signup.Draft]{
		Store:    bootstrap.BuildSessionStore[signup.Draft](redisClient, "signup", cfg.SessionTTL),
		Notifier: notifier,
		Metrics:  wizardMetrics,
		Logger:   logger,

		SubmitTimeout: cfg.SubmitTotalTimeout,
	})
	authService := auth.NewService(provider, tokens,
		bootstrap.BuildPreferenceStore(redisClient, cfg.RememberEmailTTL), wizardMetrics, logger)

	notes := handlers.NewNotificationsHandler(feed, logger)

	return &app{
		logger:        logger,
		pool:          pool,
		redis:         redisClient,
		metrics:       metricsHandler,
		tokens:        tokens,
		auth:          handlers.NewAuthHandler(authService, logger),
		catalog:       handlers.NewCatalogHandler(reg),
		bookings:      handlers.NewBookingHandler(bookings, logger).WithDiscardHook(notes.Forget),
		checkout:      handlers.NewCheckoutHandler(checkout, logger).WithDiscardHook(notes.Forget),
		signup:        handlers.NewSignupHandler(signups, logger).WithDiscardHook(notes.Forget),
		notifications: notes,
		health:        handlers.NewHealthHandler(healthChecks(pool, redisClient)),
	}, nil
}

func newRouter(a *app, cfg *appconfig.Config) http.Handler {
	return router.New(a.routerConfig(cfg))
}

func (a *app) routerConfig(cfg *appconfig.Config) *router.Config {
	return &router.Config{
		Logger:             a.logger,
		Tokens:             a.tokens,
		Auth:               a.auth,
		Catalog:            a.catalog,
		Bookings:           a.bookings,
		Signup:             a.signup,
		Checkout:           a.checkout,
		Notifications:      a.notifications,
		Health:             a.health,
		MetricsHandler:     a.metrics,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LoginRateLimit:     cfg.LoginRateLimit,
		LoginBurst:         cfg.LoginBurst,
	}
}

// Close releases the connections opened by buildApp.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func setupMetrics() (http.Handler, *metrics.WizardMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewWizardMetrics(reg)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		logger.Info("DATABASE_URL not set, submission receipts are not persisted")
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Warn("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func loadCatalog(cfg *appconfig.Config) (*catalog.Registry, error) {
	if path := strings.TrimSpace(cfg.CatalogFixturePath); path != "" {
		reg, err := catalog.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", path, err)
		}
		return reg, nil
	}
	return catalog.Default()
}

// buildTokens refuses an empty signing secret in production. Elsewhere a
// random one is generated, so tokens do not survive a restart.
func buildTokens(cfg *appconfig.Config, logger *logging.Logger) (*auth.Tokens, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("AUTH_JWT_SECRET required in production")
		}
		secret = uuid.NewString()
		logger.Warn("AUTH_JWT_SECRET not set, using an ephemeral signing secret")
	}
	return auth.NewTokens(secret, cfg.AuthTokenTTL), nil
}

func healthChecks(pool *pgxpool.Pool, client *redis.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}
