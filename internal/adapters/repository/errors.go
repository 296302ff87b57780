package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNotFound  = errors.New("snapshot not found")
	ErrStale     = errors.New("a newer snapshot version is already stored")
	ErrInvalidID = errors.New("snapshot id is empty")
	ErrCorrupt   = errors.New("stored snapshot cannot be decoded")
	ErrClosed    = errors.New("store closed")
)
