package upload

import (
	"errors"
	"fmt"
)

// Error kinds, matched with errors.Is against an *Error.
var (
	// ErrTransport means the request could not be sent or no response was received.
	ErrTransport = errors.New("transport failure")
	// ErrUnexpectedStatus means the response status differs from the phase's success status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrProtocolViolation means a success response lacks a required field. It is never retried.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrProcessingFailed means the server reported a failed or unknown processing state.
	ErrProcessingFailed = errors.New("processing failed")
)

var (
	// ErrSessionFailed is returned by every call on a session after it failed.
	ErrSessionFailed = errors.New("upload session failed")
	// ErrInvalidState is returned when a phase is called out of order.
	ErrInvalidState = errors.New("invalid upload session state")
)

// Phase names one step of the upload protocol.
type Phase string

// Protocol phases.
const (
	PhaseInit     Phase = "INIT"
	PhaseAppend   Phase = "APPEND"
	PhaseFinalize Phase = "FINALIZE"
	PhaseStatus   Phase = "STATUS"
	// PhaseSimple is the single-shot upload of non-video media.
	PhaseSimple Phase = "UPLOAD"
)

// Error is a fatal upload failure.
type Error struct {
	Kind  error
	Phase Phase
	// Handle is empty if the failure happened before INIT succeeded.
	Handle string
	// Segment is the APPEND segment index, -1 for other phases.
	Segment int
	// Status and Body are the last response's status code and body; Status is 0 on transport failures.
	Status   int
	Body     []byte
	Attempts int
	// Detail is the server's processing error, if any.
	Detail *ProcessingError
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Phase)
	if e.Segment >= 0 {
		msg += fmt.Sprintf(" segment %d", e.Segment)
	}
	if e.Handle != "" {
		msg += fmt.Sprintf(" (media %s)", e.Handle)
	}
	msg += ": " + e.Kind.Error()

	switch {
	case e.Detail != nil:
		msg += ": " + e.Detail.String()
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	case e.Status != 0:
		msg += fmt.Sprintf(": HTTP %d: %s", e.Status, e.Body)
	}

	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	return msg
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap ...
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, phase Phase, handle string) *Error {
	return &Error{
		Kind:    kind,
		Phase:   phase,
		Handle:  handle,
		Segment: -1,
	}
}
