package wizard

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

var (
	// ErrStepIncomplete is matched by every *ValidationError.
	ErrStepIncomplete = errors.New("wizard: step incomplete")

	// ErrAtFirstStep is returned by Retreat on step 1.
	ErrAtFirstStep = errors.New("wizard: already at first step")

	// ErrFinalStep is returned by Advance on the last step; only Submit moves past it.
	ErrFinalStep = errors.New("wizard: final step must be submitted")

	// ErrNotFinalStep is returned by Submit before the last step is reached.
	ErrNotFinalStep = errors.New("wizard: submit is only allowed on the final step")

	// ErrSubmitting is returned while a submission is in flight.
	ErrSubmitting = errors.New("wizard: submission in progress")

	// ErrTerminal is returned for any transition out of the terminal step.
	ErrTerminal = errors.New("wizard: session already completed")

	// ErrSessionNotFound is returned when a session id is unknown, expired or
	// owned by someone else.
	ErrSessionNotFound = errors.New("wizard: session not found")

	// ErrNetwork classifies submission failures caused by transport problems.
	ErrNetwork = errors.New("wizard: network error")

	// ErrRejected classifies submissions the backend refused outright.
	ErrRejected = errors.New("wizard: submission rejected")
)

// ValidationError lists the missing or malformed fields of one step.
type ValidationError struct {
	Step   string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("wizard: step %q incomplete (%s)", e.Step, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrStepIncomplete) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrStepIncomplete
}

// FieldError reports a single invalid field.
func FieldError(step, field, msg string) error {
	return &ValidationError{Step: step, Fields: map[string]string{field: msg}}
}

// Checker accumulates field errors for a step.
type Checker struct {
	step   string
	fields map[string]string
}

// Check starts collecting field errors for step.
func Check(step string) *Checker {
	return &Checker{step: step}
}

// Require flags field when value is blank.
func (c *Checker) Require(field, value string) *Checker {
	if strings.TrimSpace(value) == "" {
		c.Fail(field, "is required")
	}
	return c
}

// When flags field with msg when bad is true and the field has no error yet.
func (c *Checker) When(bad bool, field, msg string) *Checker {
	if bad {
		c.Fail(field, msg)
	}
	return c
}

// Email flags a non-empty value that is not a valid address.
func (c *Checker) Email(field, value string) *Checker {
	value = strings.TrimSpace(value)
	if value == "" {
		return c
	}
	if addr, err := mail.ParseAddress(value); err != nil || addr.Address != value {
		c.Fail(field, "must be a valid email address")
	}
	return c
}

// Phone flags a non-empty value with fewer than 7 or more than 15 digits.
func (c *Checker) Phone(field, value string) *Checker {
	value = strings.TrimSpace(value)
	if value == "" {
		return c
	}
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			c.Fail(field, "must be a valid phone number")
			return c
		}
	}
	if digits < 7 || digits > 15 {
		c.Fail(field, "must be a valid phone number")
	}
	return c
}

// Fail records msg for field unless an earlier error exists for it.
func (c *Checker) Fail(field, msg string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	if _, exists := c.fields[field]; !exists {
		c.fields[field] = msg
	}
}

// Has reports whether field already failed.
func (c *Checker) Has(field string) bool {
	_, ok := c.fields[field]
	return ok
}

// Err returns a *ValidationError, or nil when every check passed.
func (c *Checker) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Step: c.step, Fields: c.fields}
}
