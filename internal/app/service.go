// Package service hosts the wager sessions behind the HTTP API and applies
// live feed notifications to them.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/matchpool/internal/adapters/mq/queue"
	"github.com/okian/matchpool/internal/adapters/mq/worker"
	"github.com/okian/matchpool/internal/adapters/repository"
	"github.com/okian/matchpool/internal/domain/dedupe"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/internal/domain/session"
	"github.com/okian/matchpool/internal/domain/substitution"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
)

const defaultQueueSize = 1024

// Summary describes a hosted session.
type Summary struct {
	ID           string `json:"id"`
	MatchID      string `json:"match_id,omitempty"`
	Version      uint64 `json:"version"`
	Participants int    `json:"participants"`
	Events       int    `json:"events"`
}

type entry struct {
	sess        *session.Session
	unsubscribe func()
}

// Service is the registry of sessions and the applier of the live feed.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	byMatch  map[string][]string

	store    repository.Store
	autosave bool

	queue      *queue.InMemoryQueue
	worker     *worker.InMemoryWorker
	queueSize  int
	cancel     context.CancelFunc
	deduper    dedupe.Deduper
	dedupeSize int

	subLimit int
	policy   replay.Policy

	started bool
	logger  logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:   make(map[string]*entry),
		byMatch:    make(map[string][]string),
		queueSize:  defaultQueueSize,
		dedupeSize: dedupe.DefaultMaxSize,
		subLimit:   substitution.DefaultLimit,
		policy:     replay.PolicyRecorded,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start loads persisted sessions and starts the feed worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting matchpool service...")

	if s.store != nil {
		if err := s.loadPersisted(ctx); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s,
		worker.WithLogger(s.logger),
		worker.WithName("feed-worker"),
	)
	go s.worker.Run(runCtx)

	s.started = true
	metrics.UpdateSessions(len(s.sessions))
	s.logger.Info(ctx, "matchpool service started",
		logger.Int("sessions", len(s.sessions)),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("autosave", s.autosave && s.store != nil),
	)
	return nil
}

// loadPersisted registers every stored session; callers hold mu.
func (s *Service) loadPersisted(ctx context.Context) error {
	list, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored sessions: %w", err)
	}
	for _, sum := range list {
		snap, err := s.store.Load(ctx, sum.ID)
		if err != nil {
			s.logger.Warn(ctx, "skipping stored session", logger.String("session", sum.ID), logger.Error(err))
			continue
		}
		sess, err := session.FromSnapshot(snap, s.sessionOptions()...)
		if err != nil {
			s.logger.Warn(ctx, "skipping stored session", logger.String("session", sum.ID), logger.Error(err))
			continue
		}
		s.register(sess)
	}
	return nil
}

// Stop drains the feed queue and stops the worker.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	q, w, cancel := s.queue, s.worker, s.cancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping matchpool service...")
	_ = q.Close()

	var err error
	select {
	case <-w.Done():
	case <-ctx.Done():
		err = w.Shutdown(ctx)
	}
	cancel()

	s.mu.Lock()
	for _, e := range s.sessions {
		e.unsubscribe()
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "matchpool service stopped")
	return err
}

func (s *Service) sessionOptions() []session.Option {
	return []session.Option{
		session.WithLogger(s.logger.Named("session")),
		session.WithReplayPolicy(s.policy),
		session.WithSubstitutionLimit(s.subLimit),
	}
}

// register indexes a session and attaches the autosave observer; callers hold mu.
func (s *Service) register(sess *session.Session) {
	e := &entry{sess: sess, unsubscribe: func() {}}
	if s.store != nil && s.autosave {
		e.unsubscribe = sess.Subscribe(func(session.Change) { s.save(sess) })
	}
	prev, known := s.sessions[sess.ID()]
	if known {
		prev.unsubscribe()
	}
	s.sessions[sess.ID()] = e
	if m := sess.MatchID(); m != "" && !known {
		s.byMatch[m] = append(s.byMatch[m], sess.ID())
	}
}

func (s *Service) save(sess *session.Session) {
	ctx := context.Background()
	err := s.store.Save(ctx, sess.Snapshot())
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStale):
		// a concurrent change already stored a newer snapshot
		s.logger.Debug(ctx, "stale autosave skipped", logger.String("session", sess.ID()))
	default:
		s.logger.Error(ctx, "autosave failed", logger.String("session", sess.ID()), logger.Error(err))
	}
}

// CreateSession validates the setup and hosts a new session.
func (s *Service) CreateSession(ctx context.Context, setup session.Setup) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	if _, ok := s.sessions[setup.ID]; ok && setup.ID != "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, setup.ID)
	}
	sess, err := session.New(setup, s.sessionOptions()...)
	if err != nil {
		return nil, err
	}
	if _, ok := s.sessions[sess.ID()]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sess.ID())
	}
	s.register(sess)
	if s.store != nil && s.autosave {
		s.save(sess)
	}
	metrics.UpdateSessions(len(s.sessions))
	s.logger.Info(ctx, "session hosted",
		logger.String("session", sess.ID()),
		logger.String("match", sess.MatchID()),
	)
	return sess, nil
}

// Session returns a hosted session.
func (s *Service) Session(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.sess, nil
}

// DeleteSession stops hosting a session and removes its stored snapshot.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.unsubscribe()
	delete(s.sessions, id)
	if m := e.sess.MatchID(); m != "" {
		s.byMatch[m] = slices.DeleteFunc(s.byMatch[m], func(v string) bool { return v == id })
		if len(s.byMatch[m]) == 0 {
			delete(s.byMatch, m)
		}
	}
	metrics.UpdateSessions(len(s.sessions))
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("delete stored session: %w", err)
		}
	}
	s.logger.Info(ctx, "session deleted", logger.String("session", id))
	return nil
}

// ListSessions summarises hosted sessions ordered by id.
func (s *Service) ListSessions(_ context.Context) []Summary {
	s.mu.RLock()
	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		sessions = append(sessions, e.sess)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		snap := sess.Snapshot()
		out = append(out, Summary{
			ID:           snap.ID,
			MatchID:      snap.MatchID,
			Version:      snap.Version,
			Participants: len(snap.Participants),
			Events:       len(snap.Events),
		})
	}
	slices.SortFunc(out, func(a, b Summary) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// SeenAndRecord atomically checks if a notification id was seen and records
// it if not. The window is shared by every feed ingestion path.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord forgets a notification id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered notification ids.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue hands a live feed notification to the worker. It returns false
// when the service is stopped or the queue is full.
func (s *Service) Enqueue(ctx context.Context, n model.FeedNotification) bool {
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return false
	}
	ok := q.Enqueue(ctx, n)
	if ok {
		metrics.UpdateQueueSize(q.Len(ctx))
	}
	return ok
}

// Apply routes a notification to every session following its match.
func (s *Service) Apply(ctx context.Context, n model.FeedNotification) error {
	s.mu.RLock()
	targets := make([]*session.Session, 0, len(s.byMatch[n.MatchID]))
	for _, id := range s.byMatch[n.MatchID] {
		targets = append(targets, s.sessions[id].sess)
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		s.logger.Debug(ctx, "no session follows match", logger.String("match", n.MatchID))
		return nil
	}

	var errs []error
	for _, sess := range targets {
		if err := applyTo(ctx, sess, n); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func applyTo(ctx context.Context, sess *session.Session, n model.FeedNotification) error {
	switch {
	case n.Kind == model.NotificationSubstitution && n.Substitution != nil:
		_, err := sess.SubstituteLive(ctx, *n.Substitution)
		return err
	case n.Kind == model.NotificationScoring && n.Scoring != nil:
		_, err := sess.ScoreLive(ctx, *n.Scoring)
		return err
	default:
		return fmt.Errorf("%w: %s kind=%q", ErrInvalidNotification, n.ID, n.Kind)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"sessions":      len(s.sessions),
		"matches":       len(s.byMatch),
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"dedupeEntries": s.deduper.Size(),
		"autosave":      s.autosave && s.store != nil,
		"policy":        string(s.policy),
	}
	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	metrics.UpdateSessions(len(s.sessions))
	return stats
}
