// Package session is the aggregate root of one wager group following one match.
//
// A Session owns the roster, the append-only timeline, the wagers and the
// recorded substitutions. Every mutation runs under one mutex so there is a
// single logical writer, and observers are told about each successful
// mutation exactly once after the lock is released. Failed mutations leave
// the state untouched and never notify.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/matchpool/internal/domain/ledger"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/internal/domain/roster"
	"github.com/okian/matchpool/internal/domain/substitution"
	"github.com/okian/matchpool/internal/domain/types"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
)

// ChangeKind names the mutation behind a Change.
type ChangeKind string

const (
	ChangeSettled      ChangeKind = "settled"
	ChangeUndone       ChangeKind = "undone"
	ChangeSubstituted  ChangeKind = "substituted"
	ChangeRecalculated ChangeKind = "recalculated"
	ChangeWager        ChangeKind = "wager_changed"
	ChangeRestored     ChangeKind = "restored"
)

// Change is delivered to observers after a successful mutation.
type Change struct {
	Kind      ChangeKind
	SessionID string
	EventID   string
	Version   uint64
}

// Observer receives state-changed notifications. It runs on the mutating
// goroutine after the session lock is released and may call back into the
// session.
type Observer func(Change)

// Setup describes a new session.
type Setup struct {
	ID                string
	MatchID           string
	Participants      []model.Participant
	Wagers            []model.Wager
	Available         []model.Player
	Selected          []model.PlayerID
	SubstitutionLimit int
}

// EventInput is a scoring event as entered by a user.
type EventInput struct {
	PlayerID  model.PlayerID
	Type      model.EventType
	Minute    *int
	Timestamp time.Time
}

// Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id      string
	matchID string
	roster  *roster.Roster
	events  []model.GameEvent
	wagers  []model.Wager
	subs    []model.Substitution
	canUndo bool
	version uint64

	subLimit int
	policy   replay.Policy

	ledger      *ledger.Ledger
	coordinator *substitution.Coordinator
	engine      *replay.Engine

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int

	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func newSession(opts []Option) *Session {
	s := &Session{
		subLimit:  substitution.DefaultLimit,
		policy:    replay.PolicyRecorded,
		observers: make(map[int]Observer),
		logger:    logger.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wire builds the stateless domain services once the limit is known.
func (s *Session) wire() {
	s.ledger = ledger.New(ledger.WithLogger(s.logger.Named("ledger")))
	s.coordinator = substitution.New(
		substitution.WithLogger(s.logger.Named("substitution")),
		substitution.WithLimit(s.subLimit),
		substitution.WithClock(s.now),
		substitution.WithIDGenerator(s.newID),
	)
	s.engine = replay.New(s.ledger,
		replay.WithPolicy(s.policy),
		replay.WithLogger(s.logger.Named("replay")),
	)
}

// New validates the setup and creates a session with zero balances.
func New(setup Setup, opts ...Option) (*Session, error) {
	s := newSession(opts)
	s.id = setup.ID
	if s.id == "" {
		s.id = s.newID()
	}
	s.matchID = setup.MatchID
	if setup.SubstitutionLimit > 0 {
		s.subLimit = setup.SubstitutionLimit
	}

	participants := make([]model.Participant, len(setup.Participants))
	for i, p := range setup.Participants {
		p = p.Clone()
		if p.ID == "" {
			p.ID = model.ParticipantID(s.newID())
		}
		p.Balance = 0
		participants[i] = p
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidSetup)
	}

	r, err := roster.New(participants, setup.Available, setup.Selected)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSetup, err)
	}
	wagers, err := validateWagers(setup.Wagers)
	if err != nil {
		return nil, err
	}

	s.roster = r
	s.wagers = wagers
	s.wire()
	s.logger.Info(context.Background(), "session created",
		logger.String("session", s.id),
		logger.String("match", s.matchID),
		logger.Int("participants", r.Len()),
		logger.Int("wagers", len(wagers)),
	)
	return s, nil
}

// FromSnapshot rebuilds a session from its persistence shape. The undo slot
// starts empty.
func FromSnapshot(snap model.Snapshot, opts ...Option) (*Session, error) {
	s := newSession(opts)
	if snap.ID == "" {
		return nil, fmt.Errorf("%w: snapshot without id", ErrInvalidSetup)
	}
	if err := s.load(snap); err != nil {
		return nil, err
	}
	s.wire()
	return s, nil
}

func (s *Session) load(snap model.Snapshot) error {
	r, err := roster.New(snap.Participants, snap.Available, snap.Selected)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSetup, err)
	}
	wagers, err := validateWagers(snap.Wagers)
	if err != nil {
		return err
	}
	s.id = snap.ID
	s.matchID = snap.MatchID
	s.roster = r
	s.wagers = wagers
	s.events = cloneEvents(snap.Events)
	s.subs = append([]model.Substitution(nil), snap.Substitutions...)
	if snap.SubstitutionLimit > 0 {
		s.subLimit = snap.SubstitutionLimit
	}
	s.version = snap.Version
	s.canUndo = false
	return nil
}

func validateWagers(in []model.Wager) ([]model.Wager, error) {
	seen := make(map[model.EventType]struct{}, len(in))
	out := make([]model.Wager, 0, len(in))
	for _, w := range in {
		if !w.EventType.Valid() {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidSetup, ErrInvalidEventType, w.EventType)
		}
		if math.IsNaN(w.Amount) || math.IsInf(w.Amount, 0) {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidSetup, ErrInvalidAmount, w.EventType)
		}
		if _, dup := seen[w.EventType]; dup {
			return nil, fmt.Errorf("%w: duplicate wager for %s", ErrInvalidSetup, w.EventType)
		}
		seen[w.EventType] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// MatchID returns the live match the session follows, if any.
func (s *Session) MatchID() string { return s.matchID }

// Subscribe registers an observer and returns a function that removes it.
func (s *Session) Subscribe(o Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	key := s.nextObs
	s.nextObs++
	s.observers[key] = o
	return func() {
		s.obsMu.Lock()
		delete(s.observers, key)
		s.obsMu.Unlock()
	}
}

func (s *Session) notify(c Change) {
	s.obsMu.Lock()
	obs := make([]Observer, 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if o, ok := s.observers[i]; ok {
			obs = append(obs, o)
		}
	}
	s.obsMu.Unlock()

	for _, o := range obs {
		o(c)
		metrics.RecordNotification()
	}
}

// commit bumps the version and returns the change to deliver; callers hold mu.
func (s *Session) commit(kind ChangeKind, eventID string) Change {
	s.version++
	return Change{Kind: kind, SessionID: s.id, EventID: eventID, Version: s.version}
}

// Settle appends a scoring event and applies its settlement. Events that
// cannot settle (no wager, an empty ownership group, an unknown player) are
// not appended and the ledger's error is returned.
func (s *Session) Settle(ctx context.Context, in EventInput) (model.GameEvent, error) {
	if !in.Type.Valid() {
		metrics.RecordSettlement("invalid_type")
		return model.GameEvent{}, fmt.Errorf("settle: %w: %q", ErrInvalidEventType, in.Type)
	}

	s.mu.Lock()
	ev, change, err := s.settleLocked(ctx, in)
	s.mu.Unlock()
	if err != nil {
		return model.GameEvent{}, err
	}
	s.notify(change)
	return ev, nil
}

func (s *Session) settleLocked(ctx context.Context, in EventInput) (model.GameEvent, Change, error) {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	ev := model.GameEvent{
		ID:        s.newID(),
		PlayerID:  in.PlayerID,
		Type:      in.Type,
		Timestamp: ts,
	}
	if in.Minute != nil {
		ev.Minute = model.Minute(*in.Minute)
	}

	rec, err := s.ledger.Settle(ctx, ev, s.wagers, s.roster)
	if err != nil {
		metrics.RecordSettlement(settleOutcome(err))
		return model.GameEvent{}, Change{}, fmt.Errorf("settle: %w", err)
	}
	ev.Settlement = &rec
	s.events = append(s.events, ev)
	s.canUndo = true

	metrics.RecordSettlement("settled")
	metrics.RecordSettledVolume(rec.Volume())
	return ev, s.commit(ChangeSettled, ev.ID), nil
}

func settleOutcome(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNoWager):
		return "no_wager"
	case errors.Is(err, ledger.ErrEmptyGroup):
		return "empty_group"
	case errors.Is(err, ledger.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "error"
	}
}

// Undo pops the most recent event and reverses its settlement. It is only
// valid directly after a settle; any other mutation clears the undo slot.
func (s *Session) Undo(ctx context.Context) (model.GameEvent, error) {
	s.mu.Lock()
	if !s.canUndo || len(s.events) == 0 {
		s.mu.Unlock()
		metrics.RecordUndo("nothing_to_undo")
		return model.GameEvent{}, ErrNothingToUndo
	}
	last := s.events[len(s.events)-1]
	if _, err := s.ledger.ReverseSettle(ctx, last, s.wagers, s.roster); err != nil {
		s.mu.Unlock()
		metrics.RecordUndo("error")
		return model.GameEvent{}, fmt.Errorf("undo: %w", err)
	}
	s.events = s.events[:len(s.events)-1]
	s.canUndo = false
	change := s.commit(ChangeUndone, last.ID)
	s.mu.Unlock()

	metrics.RecordUndo("undone")
	s.logger.Debug(ctx, "event undone",
		logger.String("session", s.id),
		logger.String("event", last.ID),
	)
	s.notify(change)
	return last, nil
}

// Substitute applies a manual substitution.
func (s *Session) Substitute(ctx context.Context, req substitution.Request) (substitution.Outcome, error) {
	if req.Source == "" {
		req.Source = model.SourceManual
	}
	return s.substitute(ctx, req.Source, func() (substitution.Outcome, error) {
		return s.coordinator.Substitute(ctx, req, s.roster)
	})
}

// SubstituteLive applies a substitution reported by the live feed.
func (s *Session) SubstituteLive(ctx context.Context, ls model.LiveSubstitution) (substitution.Outcome, error) {
	out, err := s.substitute(ctx, model.SourceLive, func() (substitution.Outcome, error) {
		return s.coordinator.SubstituteLive(ctx, ls, s.roster)
	})
	if errors.Is(err, substitution.ErrUnresolved) || errors.Is(out.Reason, substitution.ErrUnresolved) {
		metrics.RecordFeedUnresolved(string(model.NotificationSubstitution))
	}
	return out, err
}

func (s *Session) substitute(ctx context.Context, source model.Source, run func() (substitution.Outcome, error)) (substitution.Outcome, error) {
	s.mu.Lock()
	out, err := run()
	if err != nil {
		s.mu.Unlock()
		metrics.RecordSubstitution(string(source), "rejected")
		return substitution.Outcome{}, err
	}
	s.events = append(s.events, out.Event)
	s.subs = append(s.subs, out.Substitution)
	s.canUndo = false
	change := s.commit(ChangeSubstituted, out.Event.ID)
	s.mu.Unlock()

	metrics.RecordSubstitution(string(source), string(out.Kind))
	s.logger.Debug(ctx, "substitution recorded",
		logger.String("session", s.id),
		logger.String("kind", string(out.Kind)),
		logger.String("label", out.Event.Label),
	)
	s.notify(change)
	return out, nil
}

// ScoreLive resolves a live scoring notification to a local player and
// settles it like a user-entered event.
func (s *Session) ScoreLive(ctx context.Context, ls model.LiveScoring) (model.GameEvent, error) {
	if !ls.EventType.Valid() {
		return model.GameEvent{}, fmt.Errorf("score live: %w: %q", ErrInvalidEventType, ls.EventType)
	}

	s.mu.Lock()
	pl, ok := s.roster.ActiveByExternalID(ls.PlayerExternalID)
	if !ok {
		pl, ok = s.roster.AvailableByExternalID(ls.PlayerExternalID)
	}
	if !ok {
		s.mu.Unlock()
		metrics.RecordFeedUnresolved(string(model.NotificationScoring))
		s.logger.Warn(ctx, "live scoring player unresolved; dropping",
			logger.String("session", s.id),
			logger.String("player", ls.PlayerExternalID),
		)
		return model.GameEvent{}, fmt.Errorf("score live: %w: %q", ErrUnresolvedPlayer, ls.PlayerExternalID)
	}
	ev, change, err := s.settleLocked(ctx, EventInput{PlayerID: pl.ID, Type: ls.EventType, Minute: ls.Minute})
	s.mu.Unlock()
	if err != nil {
		return model.GameEvent{}, err
	}
	s.notify(change)
	return ev, nil
}

// Recalculate zeroes all balances and replays the timeline under the
// configured policy. Settlement records are refreshed from the replay.
func (s *Session) Recalculate(ctx context.Context) (replay.Report, error) {
	s.mu.Lock()
	rep, err := s.engine.Recalculate(ctx, s.events, s.wagers, s.roster)
	if err != nil {
		s.mu.Unlock()
		return replay.Report{}, fmt.Errorf("recalculate: %w", err)
	}
	s.events = rep.Events
	s.canUndo = false
	change := s.commit(ChangeRecalculated, "")
	s.mu.Unlock()

	metrics.RecordReplay(string(rep.Policy), float64(rep.Duration.Microseconds())/1000)
	s.notify(change)
	return rep, nil
}

// SetWager adds or replaces the wager for an event type. Balances are not
// touched; call Recalculate to apply the new amount to past events.
func (s *Session) SetWager(ctx context.Context, t model.EventType, amount float64) error {
	if !t.Valid() {
		return fmt.Errorf("set wager: %w: %q", ErrInvalidEventType, t)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("set wager: %w: %v", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	replaced := false
	for i := range s.wagers {
		if s.wagers[i].EventType == t {
			s.wagers[i].Amount = amount
			replaced = true
			break
		}
	}
	if !replaced {
		s.wagers = append(s.wagers, model.Wager{EventType: t, Amount: amount})
	}
	s.canUndo = false
	change := s.commit(ChangeWager, "")
	s.mu.Unlock()

	s.logger.Debug(ctx, "wager set",
		logger.String("session", s.id),
		logger.String("type", string(t)),
		logger.Float64("amount", amount),
	)
	s.notify(change)
	return nil
}

// RemoveWager deletes the wager for an event type.
func (s *Session) RemoveWager(ctx context.Context, t model.EventType) error {
	s.mu.Lock()
	idx := -1
	for i := range s.wagers {
		if s.wagers[i].EventType == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove wager: %w: %s", ErrNoSuchWager, t)
	}
	s.wagers = append(s.wagers[:idx:idx], s.wagers[idx+1:]...)
	s.canUndo = false
	change := s.commit(ChangeWager, "")
	s.mu.Unlock()

	s.logger.Debug(ctx, "wager removed", logger.String("session", s.id), logger.String("type", string(t)))
	s.notify(change)
	return nil
}

// Restore replaces the whole state with a snapshot of this session.
func (s *Session) Restore(ctx context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	if snap.ID != s.id {
		s.mu.Unlock()
		return fmt.Errorf("restore: %w: %s", ErrSessionMismatch, snap.ID)
	}
	// the hosting service indexes sessions by match
	if snap.MatchID != s.matchID {
		s.mu.Unlock()
		return fmt.Errorf("restore: %w: match %q, want %q", ErrSessionMismatch, snap.MatchID, s.matchID)
	}
	current := s.version
	if err := s.load(snap); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("restore: %w", err)
	}
	s.version = max(current, snap.Version)
	s.wire()
	change := s.commit(ChangeRestored, "")
	s.mu.Unlock()

	s.logger.Info(ctx, "session restored",
		logger.String("session", s.id),
		logger.Int("events", len(snap.Events)),
	)
	s.notify(change)
	return nil
}

// Snapshot returns the persistence shape of the current state.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Snapshot{
		ID:                s.id,
		MatchID:           s.matchID,
		Participants:      s.roster.Participants(),
		Events:            cloneEvents(s.events),
		Wagers:            append([]model.Wager(nil), s.wagers...),
		Selected:          s.roster.Selected(),
		Available:         s.roster.Available(),
		Substitutions:     append([]model.Substitution(nil), s.subs...),
		SubstitutionLimit: s.subLimit,
		Version:           s.version,
		TakenAt:           s.now(),
	}
}

// Version counts successful mutations.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// CanUndo reports whether Undo would succeed.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canUndo && len(s.events) > 0
}

// Events returns a copy of the timeline.
func (s *Session) Events() []model.GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEvents(s.events)
}

// Wagers returns a copy of the wagers.
func (s *Session) Wagers() []model.Wager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Wager(nil), s.wagers...)
}

// Substitutions returns a copy of the recorded substitutions.
func (s *Session) Substitutions() []model.Substitution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Substitution(nil), s.subs...)
}

// ActivePlayers returns the participant's active players.
func (s *Session) ActivePlayers(pid model.ParticipantID) ([]model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	players, err := s.roster.ActivePlayers(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, pid)
	}
	return players, nil
}

// IsPlayerActive reports whether any participant has the player active.
func (s *Session) IsPlayerActive(id model.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.IsActive(id)
}

// OwnerOf returns the participant a player is attributed to.
func (s *Session) OwnerOf(id model.PlayerID) (model.ParticipantID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.OwnerOf(id)
}

// Player describes one player of the available pool.
func (s *Session) Player(id model.PlayerID) (types.PlayerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.roster.Player(id)
	if !ok {
		return types.PlayerView{}, false
	}
	owner, _ := s.roster.OwnerOf(id)
	return types.PlayerView{Player: pl, Owner: owner, Active: s.roster.IsActive(id)}, true
}

// RemainingSubstitutions reports the team's unused substitution allowance.
// It is informational; substitutions are never refused because of it.
func (s *Session) RemainingSubstitutions(team string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.Remaining(team, s.subs)
}

// Balances returns every participant's balance.
func (s *Session) Balances() map[model.ParticipantID]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Balances()
}

// Standings ranks participants by balance, highest first.
func (s *Session) Standings() []types.Standing {
	s.mu.Lock()
	ps := s.roster.Participants()
	s.mu.Unlock()

	rows := make([]types.Standing, len(ps))
	for i, p := range ps {
		rows[i] = types.Standing{ParticipantID: p.ID, Name: p.Name, Balance: p.Balance}
	}
	return types.Rank(rows)
}

func cloneEvents(in []model.GameEvent) []model.GameEvent {
	if in == nil {
		return nil
	}
	out := make([]model.GameEvent, len(in))
	for i, ev := range in {
		if ev.Settlement != nil {
			rec := ev.Settlement.Clone()
			ev.Settlement = &rec
		}
		if ev.Minute != nil {
			ev.Minute = model.Minute(*ev.Minute)
		}
		out[i] = ev
	}
	return out
}
