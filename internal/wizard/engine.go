package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

var wizardTracer = otel.Tracer("careconnect.internal.wizard")

const (
	defaultSubmitTimeout = 15 * time.Second
	submitGrace          = 2 * time.Second
)

// Budgeter is implemented by submitters that know the longest a Submit call
// can take, retries included.
type Budgeter interface {
	Budget() time.Duration
}

// SubmitRequest is what a Submitter receives for a session on its final step.
type SubmitRequest[T any] struct {
	SessionID      string `json:"session_id"`
	Flow           string `json:"flow"`
	Owner          string `json:"owner,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	TotalCents     int64  `json:"total_cents"`
	Draft          T      `json:"draft"`
}

// Submitter is the asynchronous boundary a completed draft crosses. It may
// be simulated or backed by real I/O.
type Submitter[T any] interface {
	Submit(ctx context.Context, req SubmitRequest[T]) (*Receipt, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc[T any] func(ctx context.Context, req SubmitRequest[T]) (*Receipt, error)

func (f SubmitterFunc[T]) Submit(ctx context.Context, req SubmitRequest[T]) (*Receipt, error) {
	return f(ctx, req)
}

// Options wires an Engine.
type Options[T any] struct {
	Flow      *Flow[T]
	Store     Store[T]
	Submitter Submitter[T]
	Notifier  notify.Notifier
	Metrics   *metrics.WizardMetrics
	Logger    *logging.Logger

	// Total prices a draft; nil means the flow has no price.
	Total func(draft T) int64
	// Success builds the toast emitted after a submission resolves.
	Success func(s *State[T]) notify.Notification
	// Scrub clears secrets from a draft once it has been submitted.
	Scrub func(draft *T)

	// SubmitTimeout bounds one Submit call. Zero derives it from the
	// submitter's Budget when it has one.
	SubmitTimeout time.Duration
	Clock         func() time.Time
	NewID         func() string
}

// Engine runs sessions of one flow against a store and a submitter.
type Engine[T any] struct {
	flow          *Flow[T]
	store         Store[T]
	submitter     Submitter[T]
	notifier      notify.Notifier
	metrics       *metrics.WizardMetrics
	logger        *logging.Logger
	total         func(T) int64
	success       func(*State[T]) notify.Notification
	scrub         func(*T)
	submitTimeout time.Duration
	clock         func() time.Time
	newID         func() string
	locks         *keyedMutex
}

// NewEngine constructs an engine. Flow, Store and Submitter are required.
func NewEngine[T any](opts Options[T]) *Engine[T] {
	if opts.Flow == nil || opts.Store == nil || opts.Submitter == nil {
		panic("wizard: flow, store and submitter required")
	}
	e := &Engine[T]{
		flow:          opts.Flow,
		store:         opts.Store,
		submitter:     opts.Submitter,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		total:         opts.Total,
		success:       opts.Success,
		scrub:         opts.Scrub,
		submitTimeout: opts.SubmitTimeout,
		clock:         opts.Clock,
		newID:         opts.NewID,
		locks:         newKeyedMutex(),
	}
	if e.notifier == nil {
		e.notifier = notify.Nop
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	e.logger = e.logger.With("flow", e.flow.Name())
	if e.submitTimeout <= 0 {
		e.submitTimeout = defaultSubmitTimeout
		if b, ok := opts.Submitter.(Budgeter); ok {
			if budget := b.Budget() + submitGrace; budget > e.submitTimeout {
				e.submitTimeout = budget
			}
		}
	}
	if e.clock == nil {
		e.clock = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Flow returns the flow definition the engine runs.
func (e *Engine[T]) Flow() *Flow[T] { return e.flow }

// Total prices a draft.
func (e *Engine[T]) Total(draft T) int64 {
	if e.total == nil {
		return 0
	}
	return e.total(draft)
}

// Start creates and persists a new session on step 1.
func (e *Engine[T]) Start(ctx context.Context, owner string, draft T) (*State[T], error) {
	s := e.flow.Start(e.newID(), owner, draft, e.clock())
	if err := e.store.Save(ctx, s); err != nil {
		return nil, err
	}
	e.metrics.ObserveTransition(e.flow.Name(), "start", "ok")
	e.logger.Info("wizard session started", "session_id", s.ID)
	return s, nil
}

// Get loads a session visible to owner.
func (e *Engine[T]) Get(ctx context.Context, id, owner string) (*State[T], error) {
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.load(ctx, id, owner)
}

// Update applies mutate to the draft. A mutate error leaves the stored
// session untouched. Edits that invalidate an earlier step rewind the
// session to that step.
func (e *Engine[T]) Update(ctx context.Context, id, owner string, mutate func(draft *T) error) (*State[T], error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.load(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if err := e.flow.Editable(s); err != nil {
		e.metrics.ObserveTransition(e.flow.Name(), "update", resultLabel(err))
		return s, err
	}
	if err := mutate(&s.Draft); err != nil {
		e.metrics.ObserveTransition(e.flow.Name(), "update", resultLabel(err))
		fresh, loadErr := e.load(ctx, id, owner)
		if loadErr != nil {
			return nil, err
		}
		return fresh, err
	}
	if from := s.CurrentStep; e.flow.Reconcile(s) {
		e.logger.Info("wizard session rewound", "session_id", s.ID, "from_step", from, "to_step", s.CurrentStep)
	}
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	e.metrics.ObserveTransition(e.flow.Name(), "update", "ok")
	return s, nil
}

// Advance moves to the next step when the current one is complete.
func (e *Engine[T]) Advance(ctx context.Context, id, owner string) (*State[T], error) {
	return e.transition(ctx, id, owner, "advance", e.flow.Advance)
}

// Retreat moves to the previous step.
func (e *Engine[T]) Retreat(ctx context.Context, id, owner string) (*State[T], error) {
	return e.transition(ctx, id, owner, "retreat", e.flow.Retreat)
}

func (e *Engine[T]) transition(ctx context.Context, id, owner, action string, apply func(*State[T]) error) (*State[T], error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.load(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	from := s.CurrentStep
	if err := apply(s); err != nil {
		e.metrics.ObserveTransition(e.flow.Name(), action, resultLabel(err))
		e.logger.Debug("wizard transition refused", "session_id", id, "action", action, "step", from, "error", err)
		return s, err
	}
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	e.metrics.ObserveTransition(e.flow.Name(), action, "ok")
	e.logger.Info("wizard step changed", "session_id", id, "action", action, "from_step", from, "to_step", s.CurrentStep)
	return s, nil
}

// Submit hands the completed draft to the submitter. The session shows
// StatusSubmitting while the call is in flight; other operations on it are
// refused with ErrSubmitting. The call is detached from ctx cancellation and
// bounded by the submit timeout instead, so a dropped client cannot strand
// the session.
func (e *Engine[T]) Submit(ctx context.Context, id, owner string) (*State[T], error) {
	s, req, err := e.beginSubmit(ctx, id, owner)
	if err != nil {
		return s, err
	}

	ctx, span := wizardTracer.Start(context.WithoutCancel(ctx), "wizard.submit", trace.WithAttributes(
		attribute.String("careconnect.flow", e.flow.Name()),
		attribute.String("careconnect.session_id", id),
	))
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	receipt, submitErr := e.submitter.Submit(callCtx, req)
	cancel()
	if submitErr == nil && receipt == nil {
		submitErr = errors.New("submitter returned no receipt")
	}
	if submitErr != nil {
		submitErr = classifySubmitError(submitErr)
		span.RecordError(submitErr)
		span.SetStatus(codes.Error, submitErr.Error())
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	s, err = e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusSubmitting {
		return s, fmt.Errorf("wizard: session %s left submitting state during submit", id)
	}

	if submitErr != nil {
		_ = e.flow.Abort(s)
		if err := e.save(ctx, s); err != nil {
			return nil, err
		}
		e.metrics.ObserveSubmission(e.flow.Name(), resultLabel(submitErr), time.Since(start))
		e.logger.Warn("wizard submission failed", "session_id", id, "error", submitErr)
		e.emit(ctx, failureNotice(s.ID, submitErr))
		return s, submitErr
	}

	e.fillReceipt(receipt, req)
	if err := e.flow.Complete(s, receipt); err != nil {
		return s, err
	}
	if e.scrub != nil {
		e.scrub(&s.Draft)
	}
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	e.metrics.ObserveSubmission(e.flow.Name(), "ok", time.Since(start))
	e.logger.Info("wizard submission completed", "session_id", id, "receipt_id", receipt.ID, "reference", receipt.Reference, "total_cents", receipt.TotalCents)
	e.emit(ctx, e.successNotice(s))
	return s, nil
}

func (e *Engine[T]) beginSubmit(ctx context.Context, id, owner string) (*State[T], SubmitRequest[T], error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.load(ctx, id, owner)
	if err != nil {
		return nil, SubmitRequest[T]{}, err
	}
	if err := e.flow.BeginSubmit(s); err != nil {
		e.metrics.ObserveTransition(e.flow.Name(), "submit", resultLabel(err))
		return s, SubmitRequest[T]{}, err
	}
	if err := e.save(ctx, s); err != nil {
		return nil, SubmitRequest[T]{}, err
	}
	e.metrics.ObserveTransition(e.flow.Name(), "submit", "ok")
	return s, SubmitRequest[T]{
		SessionID:      s.ID,
		Flow:           e.flow.Name(),
		Owner:          s.Owner,
		IdempotencyKey: e.flow.Name() + ":" + s.ID,
		TotalCents:     e.Total(s.Draft),
		Draft:          s.Draft,
	}, nil
}

// Discard deletes a session. Unknown ids are not an error.
func (e *Engine[T]) Discard(ctx context.Context, id, owner string) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	if _, err := e.load(ctx, id, owner); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.metrics.ObserveTransition(e.flow.Name(), "discard", "ok")
	e.logger.Info("wizard session discarded", "session_id", id)
	return nil
}

func (e *Engine[T]) load(ctx context.Context, id, owner string) (*State[T], error) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Flow != e.flow.Name() || (s.Owner != "" && s.Owner != owner) {
		return nil, ErrSessionNotFound
	}
	e.recoverStale(ctx, s)
	return s, nil
}

// recoverStale releases a session stuck in submitting by a crashed process.
func (e *Engine[T]) recoverStale(ctx context.Context, s *State[T]) {
	if s.Status != StatusSubmitting || e.clock().Sub(s.UpdatedAt) < 2*e.submitTimeout {
		return
	}
	if err := e.flow.Abort(s); err != nil {
		return
	}
	if err := e.save(ctx, s); err != nil {
		e.logger.Warn("failed to release stale submission", "session_id", s.ID, "error", err)
		return
	}
	e.logger.Warn("released stale submission", "session_id", s.ID)
}

func (e *Engine[T]) save(ctx context.Context, s *State[T]) error {
	s.UpdatedAt = e.clock()
	return e.store.Save(ctx, s)
}

func (e *Engine[T]) fillReceipt(r *Receipt, req SubmitRequest[T]) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Flow == "" {
		r.Flow = req.Flow
	}
	if r.SessionID == "" {
		r.SessionID = req.SessionID
	}
	if r.TotalCents == 0 {
		r.TotalCents = req.TotalCents
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = e.clock()
	}
}

func (e *Engine[T]) successNotice(s *State[T]) notify.Notification {
	if e.success != nil {
		n := e.success(s)
		n.SessionID = s.ID
		return n
	}
	return notify.Notification{
		SessionID: s.ID,
		Level:     notify.LevelSuccess,
		Title:     "Submitted",
		Message:   fmt.Sprintf("Reference %s", s.Receipt.Reference),
	}
}

func (e *Engine[T]) emit(ctx context.Context, n notify.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = e.clock()
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn("notification failed", "session_id", n.SessionID, "error", err)
	}
}

func failureNotice(sessionID string, err error) notify.Notification {
	n := notify.Notification{SessionID: sessionID, Level: notify.LevelError}
	if errors.Is(err, ErrRejected) {
		n.Title = "Submission rejected"
		n.Message = "We could not accept this request. Please review your details and try again."
		n.Code = "rejected"
		return n
	}
	n.Title = "Network error"
	n.Message = "We could not reach the server. Please try again."
	n.Code = "network_error"
	return n
}

func classifySubmitError(err error) error {
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func resultLabel(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrAtFirstStep), errors.Is(err, ErrFinalStep), errors.Is(err, ErrNotFinalStep):
		return "refused"
	case errors.Is(err, ErrSubmitting):
		return "submitting"
	case errors.Is(err, ErrTerminal):
		return "terminal"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}
