// Package ipcerr defines the wire-level error taxonomy: a small set of
// sentinel errors the core hands back to its callers, plus a distinct
// KillClient signal for contract violations that the IPC framing layer is
// expected to turn into session termination.
package ipcerr

import "errors"

var (
	// ErrDuplicate: a resource by that name exists with a conflicting kind,
	// direction, type or units.
	ErrDuplicate = errors.New("duplicate")
	// ErrNoMemory: the client is not permitted to create more resources.
	ErrNoMemory = errors.New("no-memory")
	// ErrNotFound: no such resource exists.
	ErrNotFound = errors.New("not-found")
	// ErrUnavailable: the resource exists but carries no current value.
	ErrUnavailable = errors.New("unavailable")
	// ErrUnsupported: the operation doesn't apply to this kind of entry
	// (e.g. get_data_type or get_units on a namespace).
	ErrUnsupported = errors.New("unsupported")
	// ErrFormat: a typed read's expected type didn't match the sample's
	// actual type.
	ErrFormat = errors.New("format-error")
	// ErrOverflow: the caller-supplied buffer was too small for the value.
	ErrOverflow = errors.New("overflow")
	// ErrFault: a fatal, unexpected condition; reported rather than
	// panicking so that higher layers can log the process invariant
	// violation before aborting.
	ErrFault = errors.New("fault")
)

// KillClient is returned by an operation to signal that the calling session
// committed a contract violation and must be torn down, along with all of
// its resources and handlers. It wraps the underlying reason so callers
// can still log something useful.
type KillClient struct {
	Reason string
}

func (e *KillClient) Error() string { return "kill-client: " + e.Reason }

// Kill constructs a KillClient error with the given reason.
func Kill(reason string) error { return &KillClient{Reason: reason} }

// IsKillClient reports whether err signals session termination.
func IsKillClient(err error) bool {
	var kc *KillClient
	return errors.As(err, &kc)
}
