// Package store persists deployment run history.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNotFound    = errors.New("run not found")
	ErrDuplicateID = errors.New("run ID already recorded")

	// ErrConnectionFailed is returned when the history database cannot be opened.
	ErrConnectionFailed = errors.New("history database unavailable")

	// ErrMigrationFailed is returned when the history schema cannot be applied.
	ErrMigrationFailed = errors.New("history schema migration failed")

	// ErrInvalidData is returned when a stored row cannot be decoded into a run.
	ErrInvalidData = errors.New("stored run is malformed")

	ErrTxFailed = errors.New("history transaction failed")
)

// StoreError adds the failing operation and run to a storage error.
type StoreError struct {
	Op      string // e.g. "FinishRun"
	Entity  string // always "run" today
	ID      string // run ID, empty for listings
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	subject := e.Op
	if e.Entity != "" {
		subject += " " + e.Entity
	}
	if e.ID != "" {
		subject += " " + e.ID
	}
	return fmt.Sprintf("%s: %s", subject, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}
