// Package wizard implements linear, step-gated flows that collect a draft
// across several steps before a single submission.
//
//	Step_i --advance(valid)--> Step_i+1
//	Step_i --retreat-->        Step_i-1   (i > 1)
//	Step_N --submit-->         Submitting --resolve--> Terminal
//	                           Submitting --reject-->  Step_N
//
// Terminal is step N+1 and has no outgoing transitions.
package wizard

import (
	"fmt"
	"time"
)

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusComplete   Status = "complete"
)

// Step is one screen of a flow. Validate reports which required fields of
// the draft are unset or malformed for this step.
type Step[T any] struct {
	Key      string
	Title    string
	Validate func(draft T) error
}

// Receipt is the synthetic or backend-issued proof of a submission.
type Receipt struct {
	ID          string            `json:"id"`
	Reference   string            `json:"reference"`
	Flow        string            `json:"flow"`
	SessionID   string            `json:"session_id"`
	TotalCents  int64             `json:"total_cents"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Details     map[string]string `json:"details,omitempty"`
}

// State is a single wizard session.
type State[T any] struct {
	ID          string    `json:"id"`
	Flow        string    `json:"flow"`
	Owner       string    `json:"owner,omitempty"`
	CurrentStep int       `json:"current_step"`
	Status      Status    `json:"status"`
	Draft       T         `json:"draft"`
	Receipt     *Receipt  `json:"receipt,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Flow is an ordered, immutable list of steps.
type Flow[T any] struct {
	name  string
	steps []Step[T]
}

// NewFlow builds a flow. It panics on an empty step list or a step without
// a validator, both of which are programming errors.
func NewFlow[T any](name string, steps ...Step[T]) *Flow[T] {
	if len(steps) == 0 {
		panic(fmt.Sprintf("wizard: flow %q has no steps", name))
	}
	for i, s := range steps {
		if s.Validate == nil {
			panic(fmt.Sprintf("wizard: flow %q step %d has no validator", name, i+1))
		}
	}
	return &Flow[T]{name: name, steps: append([]Step[T](nil), steps...)}
}

// Name returns the flow identifier, e.g. "booking".
func (f *Flow[T]) Name() string { return f.name }

// Len returns the number of input steps (N).
func (f *Flow[T]) Len() int { return len(f.steps) }

// TerminalStep returns N+1, the step a completed session rests on.
func (f *Flow[T]) TerminalStep() int { return len(f.steps) + 1 }

// Step returns the 1-based step i.
func (f *Flow[T]) Step(i int) (Step[T], bool) {
	if i < 1 || i > len(f.steps) {
		return Step[T]{}, false
	}
	return f.steps[i-1], true
}

// Steps returns a copy of the step list.
func (f *Flow[T]) Steps() []Step[T] {
	return append([]Step[T](nil), f.steps...)
}

// Start creates a session on step 1.
func (f *Flow[T]) Start(id, owner string, draft T, now time.Time) *State[T] {
	return &State[T]{
		ID:          id,
		Flow:        f.name,
		Owner:       owner,
		CurrentStep: 1,
		Status:      StatusInProgress,
		Draft:       draft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateStep runs the validator of step i against the session's draft.
func (f *Flow[T]) ValidateStep(s *State[T], i int) error {
	step, ok := f.Step(i)
	if !ok {
		return fmt.Errorf("wizard: flow %q has no step %d", f.name, i)
	}
	return step.Validate(s.Draft)
}

// CanAdvance reports whether Advance would succeed.
func (f *Flow[T]) CanAdvance(s *State[T]) bool {
	return s.Status == StatusInProgress &&
		s.CurrentStep < len(f.steps) &&
		f.ValidateStep(s, s.CurrentStep) == nil
}

// CanRetreat reports whether Retreat would succeed.
func (f *Flow[T]) CanRetreat(s *State[T]) bool {
	return s.Status == StatusInProgress && s.CurrentStep > 1
}

// CanSubmit reports whether BeginSubmit would succeed.
func (f *Flow[T]) CanSubmit(s *State[T]) bool {
	return s.Status == StatusInProgress &&
		s.CurrentStep == len(f.steps) &&
		f.firstInvalid(s, len(f.steps)) == 0
}

// Editable returns nil when the draft may still be changed.
func (f *Flow[T]) Editable(s *State[T]) error {
	switch s.Status {
	case StatusSubmitting:
		return ErrSubmitting
	case StatusComplete:
		return ErrTerminal
	}
	return nil
}

// Advance moves to the next step when the current one is complete. On any
// error the session is left untouched.
func (f *Flow[T]) Advance(s *State[T]) error {
	if err := f.Editable(s); err != nil {
		return err
	}
	if s.CurrentStep >= len(f.steps) {
		return ErrFinalStep
	}
	if err := f.ValidateStep(s, s.CurrentStep); err != nil {
		return err
	}
	s.CurrentStep++
	return nil
}

// Retreat moves to the previous step. Step 1 is a floor.
func (f *Flow[T]) Retreat(s *State[T]) error {
	if err := f.Editable(s); err != nil {
		return err
	}
	if s.CurrentStep <= 1 {
		return ErrAtFirstStep
	}
	s.CurrentStep--
	return nil
}

// Reconcile rewinds the session to the earliest step before the current one
// whose fields became invalid after an edit. It reports whether it moved.
func (f *Flow[T]) Reconcile(s *State[T]) bool {
	if s.Status != StatusInProgress {
		return false
	}
	if i := f.firstInvalid(s, s.CurrentStep-1); i > 0 {
		s.CurrentStep = i
		return true
	}
	return false
}

// BeginSubmit moves Step_N to Submitting after re-validating every step.
func (f *Flow[T]) BeginSubmit(s *State[T]) error {
	if err := f.Editable(s); err != nil {
		return err
	}
	if s.CurrentStep != len(f.steps) {
		return ErrNotFinalStep
	}
	if i := f.firstInvalid(s, len(f.steps)); i > 0 {
		return f.ValidateStep(s, i)
	}
	s.Status = StatusSubmitting
	return nil
}

// Complete resolves Submitting into Terminal.
func (f *Flow[T]) Complete(s *State[T], receipt *Receipt) error {
	if s.Status != StatusSubmitting {
		return fmt.Errorf("wizard: complete from status %q", s.Status)
	}
	s.Status = StatusComplete
	s.CurrentStep = f.TerminalStep()
	s.Receipt = receipt
	return nil
}

// Abort returns a failed submission to Step_N so the user can retry.
func (f *Flow[T]) Abort(s *State[T]) error {
	if s.Status != StatusSubmitting {
		return fmt.Errorf("wizard: abort from status %q", s.Status)
	}
	s.Status = StatusInProgress
	s.CurrentStep = len(f.steps)
	return nil
}

// firstInvalid returns the first step in 1..upTo that fails validation, or 0.
func (f *Flow[T]) firstInvalid(s *State[T], upTo int) int {
	for i := 1; i <= upTo && i <= len(f.steps); i++ {
		if f.ValidateStep(s, i) != nil {
			return i
		}
	}
	return 0
}
