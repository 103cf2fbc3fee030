package usecase

import "errors"

var (
	// ErrInvalidAccess indicates the reported evidence does not place the caller on the campus network.
	ErrInvalidAccess = errors.New("invalid campus wifi access")
	// ErrNoActiveSession indicates the caller has no open WiFi session.
	ErrNoActiveSession = errors.New("no active wifi session")
	// ErrInvalidBackgroundSync indicates a malformed background-sync payload.
	ErrInvalidBackgroundSync = errors.New("invalid background sync payload")
	// ErrUserIDRequired indicates the operation was called without an authenticated user.
	ErrUserIDRequired = errors.New("user id is required")

	errSessionAlreadyClosed = errors.New("session already closed")
)
