package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Engine error taxonomy. Compare with errors.Is; wrapped copies keep matching.
var (
	// ErrSessionNotFound is returned when a session id is unknown to the store.
	ErrSessionNotFound = eris.New("session not found")
	// ErrSessionAlreadyComplete is returned when an answer targets a frozen session.
	ErrSessionAlreadyComplete = eris.New("session already complete")
	// ErrPersistenceConflict is returned when a save loses an optimistic
	// version race. Callers reload and retry.
	ErrPersistenceConflict = eris.New("session persistence conflict")
	// ErrCatalogLoad marks malformed or missing taxonomy data. Fatal at startup.
	ErrCatalogLoad = eris.New("catalog load failure")
	// ErrClassifierUnavailable marks a classifier failure. It never fails a
	// turn; the engine degrades to a no-signal answer.
	ErrClassifierUnavailable = eris.New("classifier unavailable")
)

// PublicErrorMessage is the only error text shown to end users.
const PublicErrorMessage = "Sorry, we couldn't process that. Please try again."

// IsRetryable reports whether the caller should reload and retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceConflict)
}

// PublicMessage returns the user-facing message for any engine error.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	return PublicErrorMessage
}
