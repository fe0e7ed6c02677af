package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a caller-supplied identifier is malformed (e.g. empty).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration is returned when required configuration (such as the salt) is missing.
	// It is fatal at process start.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownStep is returned when a requested step id is not part of the registry.
	ErrUnknownStep = errors.New("unknown step")

	// ErrStepLocked is returned when the prerequisite of a requested step is not completed yet.
	ErrStepLocked = errors.New("step locked")

	// ErrStorageUnavailable is returned when the session store fails to persist or load a session.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSessionNotFound is returned when a session cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrVersionConflict is returned by stores with optimistic concurrency control
	// when the stored version moved since the session was loaded.
	ErrVersionConflict = errors.New("session version conflict")
)

// UnknownStepError reports a request for a step the registry does not define.
type UnknownStepError struct {
	StepID string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q", e.StepID)
}

// Is allows errors.Is(err, ErrUnknownStep).
func (e *UnknownStepError) Is(target error) bool {
	return target == ErrUnknownStep
}

// StepLockedError reports a request for a step whose prerequisite is not completed.
type StepLockedError struct {
	StepID   string
	Required string
}

func (e *StepLockedError) Error() string {
	return fmt.Sprintf("step %q is locked: requires %q", e.StepID, e.Required)
}

// Is allows errors.Is(err, ErrStepLocked).
func (e *StepLockedError) Is(target error) bool {
	return target == ErrStepLocked
}

// IsUserFacing reports whether err is a non-fatal condition the transport
// should explain to the user rather than treat as an internal failure.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrUnknownStep) || errors.Is(err, ErrStepLocked) || errors.Is(err, ErrInvalidInput)
}
