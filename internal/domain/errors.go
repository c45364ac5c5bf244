package domain

import "errors"

var (
	// ErrValidation marks malformed or missing input values.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing ledger entry or run record.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a state transition that is no longer allowed.
	ErrConflict = errors.New("conflict")

	// ErrStructural marks file-level failures (bad header, failed login)
	// that abort the whole file rather than a single document.
	ErrStructural = errors.New("structural error")

	// ErrRunInProgress is returned when a new run is refused because the
	// last recorded run has not reached a terminal state.
	ErrRunInProgress = errors.New("a run is already in progress")
)
