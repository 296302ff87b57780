package session

import (
	"time"

	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/pkg/logger"
)

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithLogger sets the session logger. The domain services log through a
// named child of it.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReplayPolicy selects the partition used by Recalculate.
func WithReplayPolicy(p replay.Policy) Option {
	return func(s *Session) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithSubstitutionLimit sets the per-team allowance used when the setup
// does not name one.
func WithSubstitutionLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.subLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how session, participant and event ids are produced.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}
