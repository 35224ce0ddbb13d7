package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired        = errors.New("authentication required")
	ErrInvalidSession      = errors.New("invalid login session")
	ErrAlreadyRunning      = errors.New("a login session is already running")
	ErrBusy                = errors.New("another operation is running for this version")
	ErrNotFound            = errors.New("package not found")
	ErrRegistryUnavailable = errors.New("package registry unavailable")
	ErrCancelled           = errors.New("cancelled")
	ErrSubprocessFailure   = errors.New("depot tool failed")
	ErrMalformed           = errors.New("malformed manifest")
	ErrUnknownVersion      = errors.New("game version not in manifest")
	ErrNotInstalled        = errors.New("game version not installed")
	ErrNotCancellable      = errors.New("operation cannot be cancelled in its current phase")
	ErrNoActiveTask        = errors.New("no active operation for this version")
	ErrGameRunning         = errors.New("the game is already running")
)

// TaskError records the phase a task failed in.
type TaskError struct {
	Version int
	Phase   Phase
	Err     error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("v%d: %s: %v", e.Version, e.Phase, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Message returns text suitable for showing to the user as-is.
func (e *TaskError) Message() string {
	return Describe(e.Err)
}

// Describe turns an error into a short user-facing sentence.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "Download cancelled"
	case errors.Is(err, ErrAuthRequired):
		return "Steam login required. Run 'hql auth login' and try again."
	case errors.Is(err, ErrBusy):
		return "Another install or update is already running for this version."
	case errors.Is(err, ErrRegistryUnavailable):
		return "The mod registry could not be reached: " + err.Error()
	case errors.Is(err, ErrNotFound):
		return "A mod package could not be found: " + err.Error()
	case errors.Is(err, ErrGameRunning):
		return "The game is already running. Stop it before launching again."
	case errors.Is(err, ErrMalformed):
		return "The remote manifest is invalid: " + err.Error()
	default:
		return err.Error()
	}
}
