package models

import (
	"errors"
	"fmt"
)

// Validation failures. They are always reported before any state changes.
var (
	ErrShapeMismatch         = errors.New("shape mismatch")
	ErrInsufficientLandmarks = errors.New("insufficient landmarks")
	ErrRangeTooShort         = errors.New("alignment range too short")
	ErrUnknownRegion         = errors.New("unknown region")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// ErrInvariant marks a broken internal invariant. The operation that
// detects it aborts and leaves prior state untouched.
var ErrInvariant = errors.New("invariant violation")

// ValidationError describes a request rejected before mutation.
type ValidationError struct {
	// Op is the operation that was rejected
	Op string

	// Kind is one of the Err* sentinels above
	Kind error

	// Reason is a human readable explanation
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Reason)
}

// Unwrap lets errors.Is match the sentinel kind.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Invalid builds a ValidationError with a formatted reason.
func Invalid(op string, kind error, format string, args ...interface{}) error {
	return &ValidationError{Op: op, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
