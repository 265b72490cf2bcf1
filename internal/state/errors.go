package state

import "errors"

// Sentinel errors for state persistence.
var (
	// ErrSaveFailed indicates at least one sink rejected a snapshot.
	ErrSaveFailed = errors.New("state: save failed")

	// ErrNotFound indicates nothing has been stored yet.
	ErrNotFound = errors.New("state: not found")

	// ErrInvalidConnection indicates a connection without a serial number.
	ErrInvalidConnection = errors.New("state: connection has no serial number")
)
