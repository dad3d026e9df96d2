package agent

import "fmt"

// APIError is a non-2xx reply from the agent API. Whether it is worth
// retrying depends on the status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent API: HTTP %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure may clear on retry. Server-side
// errors and throttling are transient; 4xx request errors are permanent.
func (e *APIError) Transient() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 429 || e.StatusCode == 408:
		return true
	}
	return false
}

// TransportError wraps a network-level failure (refused, reset, timeout).
// Always transient: the request may never have reached the service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent API transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient implements the retry classification.
func (e *TransportError) Transient() bool { return true }
