package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown API key")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("service unavailable")
)

// ErrorResponse is the uniform error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Error pairs a sentinel kind with a client-facing message. It matches its
// kind with errors.Is.
type Error struct {
	Kind    error
	Message string
	// Detail is an optional longer explanation for the client.
	Detail string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError returns an *Error of the given kind.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorDetail returns an *Error of the given kind with a detail message.
func NewErrorDetail(kind error, message, detail string) error {
	return &Error{Kind: kind, Message: message, Detail: detail}
}
