package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects a new submission while an upload or poll is in flight.
	// One asset key per machine at a time.
	ErrBusy = errors.New("upload already in progress")
	// ErrExpiredCredential reports a write attempted after the credential
	// horizon. Recoverable only by issuing a fresh credential.
	ErrExpiredCredential = errors.New("upload credential expired")
	// ErrTimeoutExhausted reports that the polling budget was spent without a
	// qualifying record. Distinct from the internal not-found-yet signal.
	ErrTimeoutExhausted = errors.New("timed out waiting for processing")
	// ErrAborted reports that the workflow was reset while in flight.
	ErrAborted = errors.New("workflow reset")
)

// ValidationError reports a local pre-flight failure: missing file, oversized
// payload, or disallowed content type. It is raised before any network call
// and never retried automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// TransportError wraps an object-store write failure. The workflow terminates;
// retrying the whole flow is the caller's decision.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
