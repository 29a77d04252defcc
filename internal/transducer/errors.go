package transducer

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a node failure worth retrying: timeouts, connection
// resets, 5xx responses, rate limits.
type TransientError struct {
	Service string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Service, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a node failure that retrying cannot fix: bad
// credentials, unsupported language pair, malformed payload.
type PermanentError struct {
	Service string
	Err     error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent failure: %v", e.Service, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a *TransientError attributed to service.
func Transient(service string, err error) error {
	return &TransientError{Service: service, Err: err}
}

// Permanent wraps err as a *PermanentError attributed to service.
func Permanent(service string, err error) error {
	return &PermanentError{Service: service, Err: err}
}

// IsTransient reports whether err should be retried. Classified transient
// errors, deadline expiry and generic network errors all qualify; an
// explicit *PermanentError never does.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// classifyStatus maps an HTTP status code from a backend into the error
// taxonomy. 429 and all 5xx are transient, other non-2xx are permanent.
func classifyStatus(service string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	if status == 429 || status >= 500 {
		return Transient(service, err)
	}
	return Permanent(service, err)
}
