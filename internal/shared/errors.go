package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrRoleNotFound indicates an operation referenced an unprovisioned role key.
	ErrRoleNotFound = errors.New("role not found")
	// ErrUnknownIdentity indicates a grant target that does not exist.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrForbidden indicates the caller lacks the permission for an
	// administrative action.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries a message suitable for direct display, used for
// invite-code rejections and malformed administrative input. It is expected
// control flow, not an infrastructure failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with the given display message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
