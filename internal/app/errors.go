package service

import "errors"

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session with a taken id.
	ErrSessionExists = errors.New("session already exists")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidNotification is returned for feed notifications without a payload.
	ErrInvalidNotification = errors.New("invalid feed notification")
)
