package replay

import "errors"

var (
	// ErrUnknownPolicy is returned when a policy name cannot be parsed.
	ErrUnknownPolicy = errors.New("unknown replay policy")
	// ErrAborted means the recalculation stopped and balances were restored.
	ErrAborted = errors.New("recalculation aborted")
)
