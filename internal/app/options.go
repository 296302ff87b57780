package service

import (
	"github.com/okian/matchpool/internal/adapters/repository"
	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the snapshot store. Sessions found in it are loaded on Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithAutosave saves a snapshot after every session change.
func WithAutosave(enabled bool) Option {
	return func(s *Service) {
		s.autosave = enabled
	}
}

// WithQueueSize sets the capacity of the feed notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many recent notification ids are remembered.
// Zero or less keeps every id.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithSubstitutionLimit sets the default per-team substitution budget of new sessions.
func WithSubstitutionLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.subLimit = n
		}
	}
}

// WithReplayPolicy sets the recalculation policy of every session.
func WithReplayPolicy(p replay.Policy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}
