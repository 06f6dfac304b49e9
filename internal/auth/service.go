// Package auth signs users in against the identity boundary and issues the
// bearer tokens the API accepts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/internal/preferences"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

var (
	ErrInvalidCredentials         = errors.New("auth: invalid email or password")
	ErrAccountDisabled            = errors.New("auth: account disabled")
	ErrAccountPendingVerification = errors.New("auth: account pending verification")
	ErrNetwork                    = errors.New("auth: network error")
)

// Dashboard paths per user type.
var redirects = map[identity.UserType]string{
	identity.UserTypePatient: "/patient/dashboard",
	identity.UserTypeDoctor:  "/doctor/dashboard",
	identity.UserTypeAdmin:   "/admin/dashboard",
}

// RedirectFor returns the landing path for a user type.
func RedirectFor(t identity.UserType) string {
	if path, ok := redirects[t]; ok {
		return path
	}
	return "/"
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	DeviceID   string `json:"-"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Principal `json:"user"`
	FullName  string    `json:"full_name,omitempty"`
	Redirect  string    `json:"redirect"`
}

// Service performs logins.
type Service struct {
	provider identity.Provider
	tokens   *Tokens
	prefs    preferences.Store
	metrics  *metrics.WizardMetrics
	logger   *logging.Logger
}

func NewService(provider identity.Provider, tokens *Tokens, prefs preferences.Store, m *metrics.WizardMetrics, logger *logging.Logger) *Service {
	if provider == nil || tokens == nil {
		panic("auth: provider and tokens required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{provider: provider, tokens: tokens, prefs: prefs, metrics: m, logger: logger}
}

// Tokens exposes the verifier used by the RequireUser middleware.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Login signs in, resolves the profile and branches on its status. Only
// active accounts receive a token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	result, err := s.login(ctx, req)
	s.metrics.ObserveLogin(loginResult(err))
	if err != nil {
		s.logger.Info("login refused", "result", loginResult(err), "error", err)
		return nil, err
	}
	s.logger.Info("login succeeded", "user_id", result.User.UserID, "user_type", result.User.UserType)
	return result, nil
}

func (s *Service) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)
	check := wizard.Check("login").Require("email", email).Require("password", req.Password)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			check.Fail("email", "must be a valid email address")
		}
	}
	if err := check.Err(); err != nil {
		return nil, err
	}

	user, err := s.provider.SignIn(ctx, email, req.Password)
	if err != nil {
		return nil, translate(err)
	}
	profile, err := s.provider.GetProfile(ctx, user.ID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: no profile for user", ErrInvalidCredentials)
		}
		return nil, translate(err)
	}

	switch profile.Status {
	case identity.StatusDisabled:
		return nil, ErrAccountDisabled
	case identity.StatusPending:
		return nil, ErrAccountPendingVerification
	case identity.StatusActive:
	default:
		return nil, fmt.Errorf("auth: unknown account status %q", profile.Status)
	}

	principal := Principal{UserID: user.ID, Email: user.Email, UserType: profile.UserType}
	token, expires, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, err
	}
	s.rememberChoice(ctx, req, email)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expires,
		User:      principal,
		FullName:  profile.FullName,
		Redirect:  RedirectFor(profile.UserType),
	}, nil
}

// RememberedEmail returns the email remembered for a device.
func (s *Service) RememberedEmail(ctx context.Context, deviceID string) (string, bool, error) {
	if s.prefs == nil {
		return "", false, nil
	}
	return s.prefs.RememberedEmail(ctx, deviceID)
}

// ForgetEmail drops the remembered email for a device.
func (s *Service) ForgetEmail(ctx context.Context, deviceID string) error {
	if s.prefs == nil {
		return nil
	}
	return s.prefs.Forget(ctx, deviceID)
}

func (s *Service) rememberChoice(ctx context.Context, req LoginRequest, email string) {
	if s.prefs == nil || req.DeviceID == "" {
		return
	}
	var err error
	if req.RememberMe {
		err = s.prefs.RememberEmail(ctx, req.DeviceID, email)
	} else {
		err = s.prefs.Forget(ctx, req.DeviceID)
	}
	if err != nil {
		s.logger.Warn("remember email preference failed", "error", err)
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case errors.Is(err, identity.ErrUserDisabled):
		return fmt.Errorf("%w: %w", ErrAccountDisabled, err)
	case errors.Is(err, identity.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	default:
		return err
	}
}

func loginResult(err error) string {
	var verr *wizard.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "disabled"
	case errors.Is(err, ErrAccountPendingVerification):
		return "pending"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}
