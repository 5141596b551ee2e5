package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrIndexNotReady     = errors.New("index not built")
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps err to a response status. An AppError anywhere in the
// chain wins; otherwise the wrapped sentinel decides.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrCorpusUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
