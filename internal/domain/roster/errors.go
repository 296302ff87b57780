package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrUnknownPlayer        = errors.New("unknown player")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrDuplicatePlayer      = errors.New("duplicate player")
	ErrExclusivity          = errors.New("player already held by another participant")
	ErrNotActive            = errors.New("player not active for participant")
	ErrSubstitutedOff       = errors.New("player already substituted off")
)
