package api

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
)

// ErrBackendUnavailable is returned while the circuit breaker is open
var ErrBackendUnavailable = errors.New("backend unavailable")

// RemoteError is a non-2xx response from the backend.
// Message holds the body's "error" field and is empty when the server sent none.
type RemoteError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

// ErrorMessage maps an error to the text shown to the user: the server's
// error message when present, otherwise a description of the failure.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		if remote.Message != "" {
			return remote.Message
		}
		return fmt.Sprintf("Request failed with status code %d", remote.Status)
	}

	if errors.Is(err, ErrBackendUnavailable) {
		return "backend unavailable, retrying shortly"
	}
	return err.Error()
}

// breakerError translates gobreaker's rejection errors
func breakerError(endpoint string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", endpoint, ErrBackendUnavailable)
	}
	return err
}
