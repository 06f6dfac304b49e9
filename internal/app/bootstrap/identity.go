package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// BuildIdentityProvider talks to the identity service when IDENTITY_BASE_URL
// is set. Otherwise it returns an in-process provider seeded with the demo
// accounts, which is refused in production.
func BuildIdentityProvider(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (identity.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if base := strings.TrimSpace(cfg.IdentityBaseURL); base != "" {
		return identity.NewHTTPProvider(base, logger).
			WithTimeout(cfg.IdentityTimeout).
			WithRetry(cfg.IdentityRetryMaxAttempts, 0), nil
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("bootstrap: IDENTITY_BASE_URL required in production")
	}

	provider := identity.NewMemoryProvider(bcrypt.DefaultCost)
	if err := identity.SeedDemoAccounts(ctx, provider); err != nil {
		return nil, fmt.Errorf("bootstrap: seed demo accounts: %w", err)
	}
	logger.Info("using in-memory identity provider with demo accounts")
	return provider, nil
}
