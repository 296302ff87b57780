package config

import "errors"

// Errors returned while loading or validating matchpool settings.
var (
	ErrInvalidConfig = errors.New("invalid matchpool configuration")
	ErrLoadConfig    = errors.New("loading matchpool configuration")
)
