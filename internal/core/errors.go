package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("budget not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty event name")
	ErrInFlight      = errors.New("a submission is already in progress")
)

// ValidationError carries field-level messages. It is produced by the form
// before any store call. errors.Is matches the sentinels recorded with Cause.
type ValidationError struct {
	Fields map[string][]string
	causes []error
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message for field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

// Cause records a message for field along with the sentinel behind it.
func (e *ValidationError) Cause(field, msg string, cause error) {
	e.Add(field, msg)
	for _, c := range e.causes {
		if c == cause {
			return
		}
	}
	e.causes = append(e.causes, cause)
}

// Inherit copies the sentinels recorded on from.
func (e *ValidationError) Inherit(from *ValidationError) {
	if from == nil {
		return
	}
	for _, c := range from.causes {
		found := false
		for _, have := range e.causes {
			if have == c {
				found = true
				break
			}
		}
		if !found {
			e.causes = append(e.causes, c)
		}
	}
}

// Unwrap returns the recorded sentinels.
func (e *ValidationError) Unwrap() []error {
	return e.causes
}

// Has reports whether field has at least one message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Messages returns every message, ordered by field name.
func (e *ValidationError) Messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, e.Fields[k]...)
	}
	return out
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// PersistenceError reports a failed store call. The in-memory collection is
// left unchanged when one is returned.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s budget %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s budget: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the target record no longer exists.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
