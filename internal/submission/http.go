package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

const (
	defaultAttemptTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 250 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

// HTTP posts submissions to a REST backend at {baseURL}/{flow}.
type HTTP[T any] struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	baseDelay   time.Duration
	logger      *logging.Logger
}

type receiptResponse struct {
	ID          string            `json:"id"`
	Reference   string            `json:"reference"`
	TotalCents  int64             `json:"total_cents"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Details     map[string]string `json:"details,omitempty"`
}

// NewHTTP constructs a REST submitter.
func NewHTTP[T any](baseURL string, logger *logging.Logger) *HTTP[T] {
	if strings.TrimSpace(baseURL) == "" {
		panic("submission: base URL required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTP[T]{
		httpClient:  &http.Client{Timeout: defaultAttemptTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      logger,
	}
}

func (h *HTTP[T]) WithTimeout(d time.Duration) *HTTP[T] {
	if d > 0 {
		h.httpClient.Timeout = d
	}
	return h
}

func (h *HTTP[T]) WithMaxAttempts(n int) *HTTP[T] {
	if n > 0 {
		h.maxAttempts = n
	}
	return h
}

func (h *HTTP[T]) WithBaseDelay(d time.Duration) *HTTP[T] {
	if d > 0 {
		h.baseDelay = d
	}
	return h
}

func (h *HTTP[T]) WithHTTPClient(c *http.Client) *HTTP[T] {
	if c != nil {
		h.httpClient = c
	}
	return h
}

// Submit posts the request, retrying transport errors, 429 and 5xx with
// exponential backoff. Other 4xx responses are final and map to
// wizard.ErrRejected.
func (h *HTTP[T]) Submit(ctx context.Context, req wizard.SubmitRequest[T]) (*wizard.Receipt, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("submission: marshal request: %w", err)
	}
	endpoint := h.baseURL + "/" + req.Flow

	var lastErr error
	for attempt := 0; attempt < h.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, h.nextDelay(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %w", wizard.ErrNetwork, err)
			}
		}
		receipt, retry, err := h.post(ctx, endpoint, req.IdempotencyKey, payload)
		if err == nil {
			return receipt, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		h.logger.Warn("submission attempt failed", "flow", req.Flow, "session_id", req.SessionID, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: after %d attempts: %w", wizard.ErrNetwork, h.maxAttempts, lastErr)
}

func (h *HTTP[T]) post(ctx context.Context, endpoint, idempotencyKey string, payload []byte) (*wizard.Receipt, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("submission: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("backend returned %d: %s", resp.StatusCode, truncate(body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, fmt.Errorf("%w: backend returned %d: %s", wizard.ErrRejected, resp.StatusCode, truncate(body))
	}

	var out receiptResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("%w: decode response: %w", wizard.ErrRejected, err)
	}
	if out.ID == "" && out.Reference == "" {
		return nil, false, fmt.Errorf("%w: backend returned an empty receipt", wizard.ErrRejected)
	}
	return &wizard.Receipt{
		ID:          out.ID,
		Reference:   out.Reference,
		TotalCents:  out.TotalCents,
		SubmittedAt: out.SubmittedAt,
		Details:     out.Details,
	}, false, nil
}

// Budget is how long Submit may run when every attempt times out, backoff
// included.
func (h *HTTP[T]) Budget() time.Duration {
	budget := time.Duration(h.maxAttempts) * h.httpClient.Timeout
	for i := 0; i < h.maxAttempts-1; i++ {
		budget += h.nextDelay(i)
	}
	return budget
}

func (h *HTTP[T]) nextDelay(attempts int) time.Duration {
	delay := h.baseDelay * time.Duration(1<<attempts)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte) string {
	msg := string(body)
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
