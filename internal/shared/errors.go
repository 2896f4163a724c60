package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthenticationRequired indicates the request carries no authenticated principal.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrForbidden indicates the principal lacks the permission for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation or another rule that blocks the mutation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Error pairs one of the sentinel kinds above with a message safe to show users.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Forbidden builds an ErrForbidden with a user-facing message.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Conflict builds an ErrConflict with a user-facing message.
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// NotFound builds an ErrNotFound with a user-facing message.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

const (
	msgForbidden = "You don't have permission to access this resource!"
	msgNotFound  = "The requested page was not found!"
	msgInternal  = "An internal error occurred. Please try again!"
)

// UserSafeMessage returns text that can be rendered without leaking internals.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password!"
	case errors.Is(err, ErrForbidden):
		return msgForbidden
	case errors.Is(err, ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrAuthenticationRequired):
		return "Please log in to access this page."
	case errors.Is(err, ErrValidation):
		return "Please correct the highlighted fields."
	}
	return msgInternal
}
