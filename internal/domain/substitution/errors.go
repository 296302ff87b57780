package substitution

import "errors"

var (
	// ErrOwnerNotFound means no participant has the outgoing player active.
	ErrOwnerNotFound = errors.New("no participant has the outgoing player active")
	// ErrAlreadyInactive means the player was already substituted off.
	ErrAlreadyInactive = errors.New("player already substituted off")
	// ErrAlreadyActive means the incoming player is active for a participant.
	ErrAlreadyActive = errors.New("incoming player already active")
	// ErrUnknownPlayer means a player id is not part of the available pool.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrUnresolved means no external id of a live substitution could be mapped.
	ErrUnresolved = errors.New("live feed ids could not be resolved")
	// ErrSamePlayer means the outgoing and incoming players are the same.
	ErrSamePlayer = errors.New("outgoing and incoming player are the same")
)
