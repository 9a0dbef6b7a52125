package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a single-entity operation names a plan or
	// task that does not exist in the project.
	ErrNotFound = errors.New("not found")
	// ErrNoActivePlan is returned when an operation needs the project's
	// active plan and none exists.
	ErrNoActivePlan = errors.New("no active plan")
	// ErrConflict is returned when a versioned update loses a race.
	ErrConflict = errors.New("version conflict")
)

// ValidationError rejects a request before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func required(field, value string) error {
	if value == "" {
		return invalid(field, "is required")
	}
	return nil
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
