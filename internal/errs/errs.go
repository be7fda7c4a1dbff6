package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrInvalidCode          = errors.New("invalid or expired code")
	ErrInvalidAdminPassword = errors.New("incorrect admin password")
)

// ValidationError carries per-field messages for input that was rejected before any write.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotificationError wraps an outbound email failure. It is logged by the caller and never
// propagated to the client.
type NotificationError struct {
	Kind string
	To   string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s to %s: %v", e.Kind, e.To, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
