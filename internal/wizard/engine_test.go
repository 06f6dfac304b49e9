package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineFixture struct {
	engine *Engine[testDraft]
	store  *MemoryStore[testDraft]
	feed   *notify.Feed
	clock  *fakeClock
}

func newEngineFixture(t *testing.T, sub Submitter[testDraft]) engineFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore[testDraft](0)
	feed := notify.NewFeed(10)
	engine := NewEngine(Options[testDraft]{
		Flow:          testFlow(),
		Store:         store,
		Submitter:     sub,
		Notifier:      feed,
		Metrics:       metrics.NewWizardMetrics(prometheus.NewRegistry()),
		Logger:        logging.Discard(),
		Total:         func(testDraft) int64 { return 15000 },
		SubmitTimeout: time.Second,
		Clock:         clock.Now,
	})
	return engineFixture{engine: engine, store: store, feed: feed, clock: clock}
}

func okSubmitter() Submitter[testDraft] {
	return SubmitterFunc[testDraft](func(_ context.Context, req SubmitRequest[testDraft]) (*Receipt, error) {
		return &Receipt{ID: "rcpt-" + req.SessionID, Reference: "TST-1"}, nil
	})
}

func walkToFinal(t *testing.T, e *Engine[testDraft], id string) {
	t.Helper()
	for i := 1; i < e.Flow().Len(); i++ {
		_, err := e.Advance(context.Background(), id, "")
		require.NoError(t, err)
	}
}

func TestEngineAdvanceWithoutEntityKeepsStepOne(t *testing.T) {
	fx := newEngineFixture(t, okSubmitter())
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", testDraft{})
	require.NoError(t, err)

	got, err := fx.engine.Advance(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrStepIncomplete)
	assert.Equal(t, 1, got.CurrentStep)

	stored, err := fx.engine.Get(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentStep)
}

func TestEngineSubmitReachesTerminalWithReceipt(t *testing.T) {
	var seen SubmitRequest[testDraft]
	sub := SubmitterFunc[testDraft](func(_ context.Context, req SubmitRequest[testDraft]) (*Receipt, error) {
		seen = req
		return &Receipt{Reference: "TST-1"}, nil
	})
	fx := newEngineFixture(t, sub)
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", completeDraft())
	require.NoError(t, err)
	walkToFinal(t, fx.engine, s.ID)

	done, err := fx.engine.Submit(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, done.Status)
	assert.Equal(t, fx.engine.Flow().TerminalStep(), done.CurrentStep)
	require.NotNil(t, done.Receipt)
	assert.NotEmpty(t, done.Receipt.ID)
	assert.Equal(t, int64(15000), done.Receipt.TotalCents)
	assert.Equal(t, "test", done.Receipt.Flow)
	assert.Equal(t, "test:"+s.ID, seen.IdempotencyKey)
	assert.Equal(t, int64(15000), seen.TotalCents)

	toasts := fx.feed.Drain(s.ID)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.LevelSuccess, toasts[0].Level)

	_, err = fx.engine.Advance(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = fx.engine.Submit(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestEngineSubmitFailureReturnsToFinalStep(t *testing.T) {
	sub := SubmitterFunc[testDraft](func(context.Context, SubmitRequest[testDraft]) (*Receipt, error) {
		return nil, errors.New("connection refused")
	})
	fx := newEngineFixture(t, sub)
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", completeDraft())
	require.NoError(t, err)
	walkToFinal(t, fx.engine, s.ID)

	got, err := fx.engine.Submit(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, fx.engine.Flow().Len(), got.CurrentStep)
	assert.Nil(t, got.Receipt)

	toasts := fx.feed.Drain(s.ID)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.LevelError, toasts[0].Level)
	assert.Equal(t, "network_error", toasts[0].Code)
}

func TestEngineSubmitRejectedKeepsClassification(t *testing.T) {
	sub := SubmitterFunc[testDraft](func(context.Context, SubmitRequest[testDraft]) (*Receipt, error) {
		return nil, ErrRejected
	})
	fx := newEngineFixture(t, sub)
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", completeDraft())
	require.NoError(t, err)
	walkToFinal(t, fx.engine, s.ID)

	_, err = fx.engine.Submit(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, "rejected", fx.feed.Drain(s.ID)[0].Code)
}

func TestEngineRefusesOperationsWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	sub := SubmitterFunc[testDraft](func(context.Context, SubmitRequest[testDraft]) (*Receipt, error) {
		close(entered)
		<-release
		return &Receipt{Reference: "TST-2"}, nil
	})
	fx := newEngineFixture(t, sub)
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", completeDraft())
	require.NoError(t, err)
	walkToFinal(t, fx.engine, s.ID)

	result := make(chan error, 1)
	go func() {
		_, err := fx.engine.Submit(ctx, s.ID, "")
		result <- err
	}()
	<-entered

	pending, err := fx.engine.Get(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitting, pending.Status)

	_, err = fx.engine.Retreat(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrSubmitting)
	_, err = fx.engine.Update(ctx, s.ID, "", func(d *testDraft) error { d.Name = "x"; return nil })
	assert.ErrorIs(t, err, ErrSubmitting)
	_, err = fx.engine.Submit(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrSubmitting)

	close(release)
	require.NoError(t, <-result)
}

func TestEngineSubmitDetachesFromCallerCancellation(t *testing.T) {
	sub := SubmitterFunc[testDraft](func(ctx context.Context, _ SubmitRequest[testDraft]) (*Receipt, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Receipt{Reference: "TST-3"}, nil
	})
	fx := newEngineFixture(t, sub)

	s, err := fx.engine.Start(context.Background(), "", completeDraft())
	require.NoError(t, err)
	walkToFinal(t, fx.engine, s.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done, err := fx.engine.Submit(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, done.Status)
}

func TestEngineUpdateRewindsAndRollsBackOnError(t *testing.T) {
	fx := newEngineFixture(t, okSubmitter())
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", completeDraft())
	require.NoError(t, err)
	walkToFinal(t, fx.engine, s.ID)

	got, err := fx.engine.Update(ctx, s.ID, "", func(d *testDraft) error {
		d.Name = "changed"
		return errors.New("unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, "Pat", got.Draft.Name)

	got, err = fx.engine.Update(ctx, s.ID, "", func(d *testDraft) error {
		d.Time = ""
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStep)
}

func TestEngineOwnerIsolation(t *testing.T) {
	fx := newEngineFixture(t, okSubmitter())
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "user-1", completeDraft())
	require.NoError(t, err)

	_, err = fx.engine.Get(ctx, s.ID, "user-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = fx.engine.Advance(ctx, s.ID, "user-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	got, err := fx.engine.Get(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Owner)
}

func TestEngineReleasesStaleSubmission(t *testing.T) {
	fx := newEngineFixture(t, okSubmitter())
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", completeDraft())
	require.NoError(t, err)
	s.CurrentStep = 3
	s.Status = StatusSubmitting
	s.UpdatedAt = fx.clock.Now()
	require.NoError(t, fx.store.Save(ctx, s))

	got, err := fx.engine.Get(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitting, got.Status)

	fx.clock.Advance(5 * time.Second)
	got, err = fx.engine.Get(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 3, got.CurrentStep)
}

func TestEngineDiscard(t *testing.T) {
	fx := newEngineFixture(t, okSubmitter())
	ctx := context.Background()

	s, err := fx.engine.Start(ctx, "", testDraft{})
	require.NoError(t, err)
	require.NoError(t, fx.engine.Discard(ctx, s.ID, ""))
	require.NoError(t, fx.engine.Discard(ctx, s.ID, ""))

	_, err = fx.engine.Get(ctx, s.ID, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "invalid", resultLabel(Check("x").Require("a", "").Err()))
	assert.Equal(t, "refused", resultLabel(ErrAtFirstStep))
	assert.Equal(t, "network_error", resultLabel(classifySubmitError(errors.New("dial"))))
}

type budgetSubmitter struct {
	budget   time.Duration
	deadline time.Duration
}

func (b *budgetSubmitter) Budget() time.Duration { return b.budget }

func (b *budgetSubmitter) Submit(ctx context.Context, _ SubmitRequest[testDraft]) (*Receipt, error) {
	if dl, ok := ctx.Deadline(); ok {
		b.deadline = time.Until(dl)
	}
	return &Receipt{Reference: "TST-1"}, nil
}

func TestEngineSubmitTimeoutCoversSubmitterBudget(t *testing.T) {
	cases := []struct {
		name       string
		budget     time.Duration
		configured time.Duration
		want       time.Duration
	}{
		{name: "budget above default", budget: 40 * time.Second, want: 40*time.Second + submitGrace},
		{name: "budget below default", budget: time.Second, want: defaultSubmitTimeout},
		{name: "explicit timeout wins", budget: 40 * time.Second, configured: 3 * time.Second, want: 3 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &budgetSubmitter{budget: tc.budget}
			engine := NewEngine(Options[testDraft]{
				Flow:          testFlow(),
				Store:         NewMemoryStore[testDraft](0),
				Submitter:     sub,
				Logger:        logging.Discard(),
				SubmitTimeout: tc.configured,
			})
			ctx := context.Background()

			s, err := engine.Start(ctx, "", completeDraft())
			require.NoError(t, err)
			walkToFinal(t, engine, s.ID)
			_, err = engine.Submit(ctx, s.ID, "")
			require.NoError(t, err)

			assert.LessOrEqual(t, sub.deadline, tc.want)
			assert.Greater(t, sub.deadline, tc.want-time.Second)
		})
	}
}
