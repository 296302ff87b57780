package repository

import (
	"time"

	"github.com/okian/matchpool/pkg/logger"
)

type settings struct {
	logger logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time recorded as UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: logger.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
