package mcpsession

import (
	"errors"
	"fmt"
)

var (
	// ErrStartupFailed matches every *StartupError.
	ErrStartupFailed = errors.New("tool provider startup failed")
	// ErrNotOpen is returned when a session is used before Open succeeded.
	ErrNotOpen = errors.New("mcp session is not open")
	// ErrClosed is returned when a session is used after Close.
	ErrClosed = errors.New("mcp session is closed")
)

// StartupFailure classifies why Open failed.
type StartupFailure int

const (
	// StartupLaunchFailed: the subprocess could not be started.
	StartupLaunchFailed StartupFailure = iota + 1
	// StartupTimeout: the handshake did not complete within the startup timeout.
	StartupTimeout
	// StartupHandshakeFailed: the provider rejected the handshake or went away.
	StartupHandshakeFailed
)

func (f StartupFailure) String() string {
	switch f {
	case StartupLaunchFailed:
		return "launch failed"
	case StartupTimeout:
		return "timed out"
	case StartupHandshakeFailed:
		return "handshake failed"
	default:
		return "unknown"
	}
}

// StartupError reports a failed Session.Open.
type StartupError struct {
	Kind    StartupFailure
	Command string
	Err     error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %v", ErrStartupFailed, e.Kind, e.Command, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStartupFailed) true for every StartupError.
func (e *StartupError) Is(target error) bool {
	return target == ErrStartupFailed
}

// StartupKind returns the failure kind when err is a *StartupError.
func StartupKind(err error) (StartupFailure, bool) {
	var se *StartupError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
