package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

var identityTracer = otel.Tracer("careconnect.internal.identity")

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultRetryDelay  = 200 * time.Millisecond
)

// HTTPProvider talks to the identity service REST API.
type HTTPProvider struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	retryDelay  time.Duration
	logger      *logging.Logger
}

// NewHTTPProvider constructs an identity REST client.
func NewHTTPProvider(baseURL string, logger *logging.Logger) *HTTPProvider {
	if strings.TrimSpace(baseURL) == "" {
		panic("identity: base URL required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPProvider{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      logger,
	}
}

func (p *HTTPProvider) WithTimeout(d time.Duration) *HTTPProvider {
	if d > 0 {
		p.httpClient.Timeout = d
	}
	return p
}

// WithRetry sets how often idempotent reads are attempted.
func (p *HTTPProvider) WithRetry(maxAttempts int, delay time.Duration) *HTTPProvider {
	if maxAttempts > 0 {
		p.maxAttempts = maxAttempts
	}
	if delay > 0 {
		p.retryDelay = delay
	}
	return p
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn authenticates with email and password.
func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	ctx, span := identityTracer.Start(ctx, "identity.sign_in")
	defer span.End()

	var user User
	err := p.doJSON(ctx, http.MethodPost, "/v1/sessions", signInRequest{Email: email, Password: password}, &user)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return &user, nil
}

// GetProfile fetches the profile of a user. Network failures are retried.
func (p *HTTPProvider) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	ctx, span := identityTracer.Start(ctx, "identity.get_profile")
	defer span.End()
	span.SetAttributes(attribute.String("careconnect.user_id", userID))

	path := "/v1/users/" + url.PathEscape(userID) + "/profile"
	var (
		profile Profile
		err     error
	)
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.retryDelay * time.Duration(1<<(attempt-1)))
			select {
			case <-ctx.Done():
				timer.Stop()
				recordSpanError(span, err)
				return nil, err
			case <-timer.C:
			}
		}
		err = p.doJSON(ctx, http.MethodGet, path, nil, &profile)
		if err == nil {
			return &profile, nil
		}
		if !errors.Is(err, ErrNetwork) {
			break
		}
		p.logger.Warn("identity profile fetch failed", "user_id", userID, "attempt", attempt+1, "error", err)
	}
	recordSpanError(span, err)
	return nil, err
}

// Register creates an account.
func (p *HTTPProvider) Register(ctx context.Context, reg Registration) (*Profile, error) {
	ctx, span := identityTracer.Start(ctx, "identity.register")
	defer span.End()
	span.SetAttributes(attribute.String("careconnect.user_type", string(reg.UserType)))

	var profile Profile
	if err := p.doJSON(ctx, http.MethodPost, "/v1/users", reg, &profile); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return &profile, nil
}

func (p *HTTPProvider) doJSON(ctx context.Context, method, path string, body any, out any) error {
	endpoint := p.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		p.logger.Warn("identity API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return statusError(resp.StatusCode)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("identity: decode response: %w", err)
	}
	return nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case status == http.StatusForbidden:
		return ErrUserDisabled
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrEmailInUse
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: identity API returned %d", ErrNetwork, status)
	default:
		return fmt.Errorf("identity: API returned %d", status)
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

var _ Provider = (*HTTPProvider)(nil)
