// Package submission implements the boundary a completed wizard draft is
// handed to: a simulated backend, a REST backend, an SQS queue and a
// Postgres receipt log that makes repeat submissions idempotent.
package submission

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

const defaultSimulatedDelay = 1500 * time.Millisecond

// Reference prefixes per flow.
const (
	PrefixAppointment = "APT"
	PrefixOrder       = "ORD"
	PrefixUser        = "USR"
)

// ErrSimulatedFailure is returned when failure injection trips.
var ErrSimulatedFailure = errors.New("submission: simulated network failure")

// Simulated resolves every submission locally after a fixed delay.
type Simulated[T any] struct {
	prefix      string
	delay       time.Duration
	failureRate float64
	fail        func(wizard.SubmitRequest[T]) error
	random      func() float64
	clock       func() time.Time
	logger      *logging.Logger
}

// NewSimulated constructs a simulator whose receipts carry prefix.
func NewSimulated[T any](prefix string, logger *logging.Logger) *Simulated[T] {
	if logger == nil {
		logger = logging.Default()
	}
	return &Simulated[T]{
		prefix: prefix,
		delay:  defaultSimulatedDelay,
		random: rand.Float64,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithDelay overrides the wait before a receipt is issued. Zero resolves
// immediately.
func (s *Simulated[T]) WithDelay(d time.Duration) *Simulated[T] {
	if d >= 0 {
		s.delay = d
	}
	return s
}

// WithFailureRate makes a fraction of submissions fail with a network error.
func (s *Simulated[T]) WithFailureRate(rate float64) *Simulated[T] {
	if rate >= 0 && rate <= 1 {
		s.failureRate = rate
	}
	return s
}

// WithFailFunc injects a failure decision; a non-nil return fails the call.
func (s *Simulated[T]) WithFailFunc(fn func(wizard.SubmitRequest[T]) error) *Simulated[T] {
	s.fail = fn
	return s
}

func (s *Simulated[T]) WithClock(clock func() time.Time) *Simulated[T] {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Simulated[T]) Submit(ctx context.Context, req wizard.SubmitRequest[T]) (*wizard.Receipt, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", wizard.ErrNetwork, ctx.Err())
		case <-timer.C:
		}
	}

	if s.fail != nil {
		if err := s.fail(req); err != nil {
			return nil, err
		}
	}
	if s.failureRate > 0 && s.random() < s.failureRate {
		s.logger.Info("simulated submission failure", "flow", req.Flow, "session_id", req.SessionID)
		return nil, fmt.Errorf("%w: %w", wizard.ErrNetwork, ErrSimulatedFailure)
	}

	now := s.clock()
	return &wizard.Receipt{
		ID:          uuid.NewString(),
		Reference:   Reference(s.prefix, now),
		Flow:        req.Flow,
		SessionID:   req.SessionID,
		TotalCents:  req.TotalCents,
		SubmittedAt: now,
	}, nil
}

// Reference derives a human readable confirmation number from a timestamp.
func Reference(prefix string, at time.Time) string {
	code := strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36))
	if prefix == "" {
		return code
	}
	return prefix + "-" + code
}
