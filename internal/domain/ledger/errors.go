package ledger

import "errors"

// Sentinel kinds for settlement errors. None of them leave balances changed.
var (
	ErrNoWager       = errors.New("no wager for event type")
	ErrUnknownPlayer = errors.New("player not in roster")
	ErrEmptyGroup    = errors.New("ownership partition has an empty side")
	ErrNotWagering   = errors.New("event does not take part in settlement")
	ErrInvalidAmount = errors.New("wager amount is not a finite number")
	ErrUnbalanced    = errors.New("settlement is not zero-sum")
)
