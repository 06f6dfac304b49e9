// Package notify delivers the transient toast notifications shown to users
// and the confirmation emails that accompany some of them.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Level is the visual severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a single toast addressed to a wizard session.
type Notification struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Level     Level         `json:"level"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Code      string        `json:"code,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Email     *EmailMessage `json:"-"`
}

// Notifier accepts notifications for delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop discards every notification.
var Nop Notifier = NotifierFunc(func(context.Context, Notification) error { return nil })

const (
	defaultFeedCapacity = 20
	defaultFeedTTL      = 30 * time.Minute
)

type pendingQueue struct {
	items   []Notification
	touched time.Time
}

// Feed keeps undelivered toasts per session in memory and fans them out to
// live subscribers. A toast a subscriber received is not queued again.
// Queues nobody drains expire after the feed's ttl. Delivery is best effort:
// slow subscribers miss toasts.
type Feed struct {
	capacity int
	ttl      time.Duration
	clock    func() time.Time

	mu        sync.Mutex
	pending   map[string]*pendingQueue
	subs      map[string]map[int]chan Notification
	nextSub   int
	lastSweep time.Time
}

// NewFeed creates a feed retaining up to capacity toasts per session.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{
		capacity: capacity,
		ttl:      defaultFeedTTL,
		clock:    time.Now,
		pending:  make(map[string]*pendingQueue),
		subs:     make(map[string]map[int]chan Notification),
	}
}

// WithTTL sets how long an undrained queue is kept after its last toast.
func (f *Feed) WithTTL(ttl time.Duration) *Feed {
	if ttl > 0 {
		f.ttl = ttl
	}
	return f
}

func (f *Feed) withClock(clock func() time.Time) *Feed {
	f.clock = clock
	return f
}

// Notify delivers n to subscribers of its session, or queues it for the next
// Drain when none received it.
func (f *Feed) Notify(_ context.Context, n Notification) error {
	if n.SessionID == "" {
		return errors.New("notify: notification has no session")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := f.clock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now.UTC()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweep(now)

	delivered := false
	for _, ch := range f.subs[n.SessionID] {
		select {
		case ch <- n:
			delivered = true
		default:
		}
	}
	if delivered {
		return nil
	}

	q := f.pending[n.SessionID]
	if q == nil {
		q = &pendingQueue{}
		f.pending[n.SessionID] = q
	}
	q.items = append(q.items, n)
	if len(q.items) > f.capacity {
		q.items = q.items[len(q.items)-f.capacity:]
	}
	q.touched = now
	return nil
}

// Drain returns and clears the pending toasts for a session, oldest first.
func (f *Feed) Drain(sessionID string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.pending[sessionID]
	delete(f.pending, sessionID)
	if q == nil || f.clock().Sub(q.touched) > f.ttl {
		return nil
	}
	return q.items
}

// Pending reports how many sessions hold undrained toasts.
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// sweep drops expired queues at most once per ttl/2. Callers hold f.mu.
func (f *Feed) sweep(now time.Time) {
	if now.Sub(f.lastSweep) < f.ttl/2 {
		return
	}
	f.lastSweep = now
	for id, q := range f.pending {
		if now.Sub(q.touched) > f.ttl {
			delete(f.pending, id)
		}
	}
}

// Subscribe streams new toasts for a session until cancel is called.
func (f *Feed) Subscribe(sessionID string) (<-chan Notification, func()) {
	ch := make(chan Notification, f.capacity)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[int]chan Notification)
	}
	f.subs[sessionID][id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[sessionID], id)
			if len(f.subs[sessionID]) == 0 {
				delete(f.subs, sessionID)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Forget drops pending toasts for a discarded session.
func (f *Feed) Forget(sessionID string) {
	f.mu.Lock()
	delete(f.pending, sessionID)
	f.mu.Unlock()
}

// EmailNotifier sends the email attached to a notification, if any.
type EmailNotifier struct {
	sender EmailSender
	logger *logging.Logger
}

// NewEmailNotifier wraps an EmailSender.
func NewEmailNotifier(sender EmailSender, logger *logging.Logger) *EmailNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailNotifier{sender: sender, logger: logger}
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if e.sender == nil || n.Email == nil || n.Email.To == "" {
		return nil
	}
	if err := e.sender.Send(ctx, *n.Email); err != nil {
		e.logger.Warn("notification email failed", "error", err, "session_id", n.SessionID)
		return err
	}
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	var list []Notifier
	for _, n := range notifiers {
		if n != nil {
			list = append(list, n)
		}
	}
	return NotifierFunc(func(ctx context.Context, n Notification) error {
		var errs []error
		for _, notifier := range list {
			if err := notifier.Notify(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

var (
	_ Notifier = (*Feed)(nil)
	_ Notifier = (*EmailNotifier)(nil)
)
