package session

import "errors"

var (
	// ErrNothingToUndo is returned when the undo slot is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrUnknownParticipant is returned by participant queries for unknown ids.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrInvalidSetup wraps every validation failure of a new session or snapshot.
	ErrInvalidSetup = errors.New("invalid session setup")
	// ErrInvalidEventType is returned for event types outside the known set.
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrInvalidAmount is returned for non-finite wager amounts.
	ErrInvalidAmount = errors.New("invalid wager amount")
	// ErrNoSuchWager is returned when removing a wager that does not exist.
	ErrNoSuchWager = errors.New("no such wager")
	// ErrUnresolvedPlayer is returned when a live scoring id maps to no player.
	ErrUnresolvedPlayer = errors.New("live player id could not be resolved")
	// ErrSessionMismatch is returned when restoring a snapshot of another session.
	ErrSessionMismatch = errors.New("snapshot belongs to another session")
)
