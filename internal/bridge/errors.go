package bridge

import (
	"errors"
	"fmt"
)

// CodeNotFound is the backend error code that is never retried.
const CodeNotFound = 404

// ErrRetryExhausted is returned when every attempt of a call failed with a
// retryable backend error. The last backend error is wrapped alongside it.
var ErrRetryExhausted = errors.New("bridge: retry budget exhausted")

// BackendError is an error response returned by the backend.
type BackendError struct {
	Request string
	Code    int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend error %d: %s", e.Request, e.Code, e.Message)
}

// Fatal reports whether the error must not be retried.
func (e *BackendError) Fatal() bool {
	return e.Code == CodeNotFound
}

// IsFatal reports whether err wraps a fatal backend error.
func IsFatal(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Fatal()
}

// IsBackendCode reports whether err wraps a backend error with the given code.
func IsBackendCode(err error, code int) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Code == code
}
