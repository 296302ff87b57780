package livews

import "errors"

var (
	// ErrUnknownType is returned for frames whose "mt" is not handled.
	ErrUnknownType = errors.New("unknown message type")

	// ErrMalformed is returned for frames that cannot be decoded or miss required fields.
	ErrMalformed = errors.New("malformed message")
)
