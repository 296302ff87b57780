// Package ledger computes and reverses the balance mutations caused by
// scoring events.
//
// Participants are split into those who own the event's player (active or
// substituted off) and those who do not. A non-negative wager makes the
// non-owners fund the owners; a negative wager makes the owners fund the
// non-owners. Both branches are zero-sum for any group sizes.
package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/roster"
	"github.com/okian/matchpool/pkg/logger"
)

// DefaultEpsilon bounds the float error tolerated in the zero-sum check.
const DefaultEpsilon = 1e-9

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for no-op diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithEpsilon overrides the zero-sum tolerance.
func WithEpsilon(eps float64) Option {
	return func(lg *Ledger) {
		if eps > 0 {
			lg.epsilon = eps
		}
	}
}

// Ledger is stateless; the roster it mutates is passed on every call.
type Ledger struct {
	logger  logger.Logger
	epsilon float64
}

// New creates a Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		logger:  logger.NewNop(),
		epsilon: DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FindWager returns the wager registered for the event type.
func FindWager(wagers []model.Wager, t model.EventType) (model.Wager, bool) {
	for _, w := range wagers {
		if w.EventType == t {
			return w, true
		}
	}
	return model.Wager{}, false
}

// Compute returns the deltas for a wager amount over a partition without
// touching any balance.
func Compute(amount float64, with, without []model.ParticipantID) (model.Settlement, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.Settlement{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if len(with) == 0 || len(without) == 0 {
		return model.Settlement{}, fmt.Errorf("%w: with=%d without=%d", ErrEmptyGroup, len(with), len(without))
	}

	withCount := float64(len(with))
	withoutCount := float64(len(without))
	deltas := make(map[model.ParticipantID]float64, len(with)+len(without))

	if amount >= 0 {
		perWinner := withoutCount * amount / withCount
		for _, id := range with {
			deltas[id] += perWinner
		}
		for _, id := range without {
			deltas[id] -= amount
		}
	} else {
		pay := math.Abs(amount)
		totalPayment := pay * withoutCount
		for _, id := range with {
			deltas[id] -= totalPayment
		}
		for _, id := range without {
			deltas[id] += pay * withCount
		}
	}

	return model.Settlement{
		Amount:  amount,
		With:    append([]model.ParticipantID(nil), with...),
		Without: append([]model.ParticipantID(nil), without...),
		Deltas:  deltas,
	}, nil
}

// Settle looks up the wager for the event, partitions participants against
// the current roster and applies the resulting deltas.
func (l *Ledger) Settle(ctx context.Context, ev model.GameEvent, wagers []model.Wager, r *roster.Roster) (model.Settlement, error) {
	wager, err := l.prepare(ctx, ev, wagers, r)
	if err != nil {
		return model.Settlement{}, err
	}
	with, without := r.Partition(ev.PlayerID)
	return l.apply(ctx, ev, wager.Amount, with, without, r)
}

// SettleRecorded re-applies an event using the partition captured when it was
// first settled and the current wager amount. Participants that no longer
// exist are dropped from the partition. Events without a record are settled
// against the current roster.
func (l *Ledger) SettleRecorded(ctx context.Context, ev model.GameEvent, wagers []model.Wager, r *roster.Roster) (model.Settlement, error) {
	if ev.Settlement == nil {
		return l.Settle(ctx, ev, wagers, r)
	}
	wager, err := l.prepare(ctx, ev, wagers, r)
	if err != nil {
		return model.Settlement{}, err
	}
	return l.apply(ctx, ev, wager.Amount, known(r, ev.Settlement.With), known(r, ev.Settlement.Without), r)
}

// ReverseSettle undoes a settled event. When the event carries its settlement
// record the exact negated deltas are applied; otherwise the current partition
// is recomputed, which is only exact if ownership did not change meanwhile.
func (l *Ledger) ReverseSettle(ctx context.Context, ev model.GameEvent, wagers []model.Wager, r *roster.Roster) (model.Settlement, error) {
	if ev.Settlement != nil {
		return l.Reverse(ctx, *ev.Settlement, r)
	}
	wager, err := l.prepare(ctx, ev, wagers, r)
	if err != nil {
		return model.Settlement{}, err
	}
	with, without := r.Partition(ev.PlayerID)
	s, err := Compute(wager.Amount, with, without)
	if err != nil {
		return model.Settlement{}, err
	}
	return l.Reverse(ctx, s, r)
}

// Reverse applies the negation of a settlement's deltas. Every participant
// is checked before any balance moves.
func (l *Ledger) Reverse(ctx context.Context, s model.Settlement, r *roster.Roster) (model.Settlement, error) {
	for id := range s.Deltas {
		if _, ok := r.Participant(id); !ok {
			return model.Settlement{}, fmt.Errorf("reverse: %w: %s", roster.ErrUnknownParticipant, id)
		}
	}
	inverse := model.Settlement{
		Amount:  s.Amount,
		With:    s.With,
		Without: s.Without,
		Deltas:  make(map[model.ParticipantID]float64, len(s.Deltas)),
	}
	for id, d := range s.Deltas {
		inverse.Deltas[id] = -d
		_ = r.Adjust(id, -d)
	}
	l.logger.Debug(ctx, "settlement reversed",
		logger.Float64("amount", s.Amount),
		logger.Int("with", len(s.With)),
		logger.Int("without", len(s.Without)),
	)
	return inverse, nil
}

func (l *Ledger) prepare(ctx context.Context, ev model.GameEvent, wagers []model.Wager, r *roster.Roster) (model.Wager, error) {
	if !ev.Wagering() {
		return model.Wager{}, fmt.Errorf("%w: %s", ErrNotWagering, ev.ID)
	}
	wager, ok := FindWager(wagers, ev.Type)
	if !ok {
		l.logger.Debug(ctx, "no wager for event type; skipping",
			logger.String("event", ev.ID),
			logger.String("type", string(ev.Type)),
		)
		return model.Wager{}, fmt.Errorf("%w: %s", ErrNoWager, ev.Type)
	}
	if _, ok := r.Player(ev.PlayerID); !ok {
		l.logger.Debug(ctx, "event player not in roster; skipping",
			logger.String("event", ev.ID),
			logger.String("player", string(ev.PlayerID)),
		)
		return model.Wager{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, ev.PlayerID)
	}
	return wager, nil
}

func (l *Ledger) apply(ctx context.Context, ev model.GameEvent, amount float64, with, without []model.ParticipantID, r *roster.Roster) (model.Settlement, error) {
	s, err := Compute(amount, with, without)
	if err != nil {
		l.logger.Debug(ctx, "settlement skipped",
			logger.String("event", ev.ID),
			logger.String("player", string(ev.PlayerID)),
			logger.Error(err),
		)
		return model.Settlement{}, err
	}
	if !s.Balanced(l.epsilon * math.Max(1, s.Volume())) {
		return model.Settlement{}, fmt.Errorf("%w: sum=%g", ErrUnbalanced, s.Sum())
	}
	for id, d := range s.Deltas {
		_ = r.Adjust(id, d)
	}
	l.logger.Debug(ctx, "event settled",
		logger.String("event", ev.ID),
		logger.String("player", string(ev.PlayerID)),
		logger.String("type", string(ev.Type)),
		logger.Float64("amount", amount),
		logger.Int("with", len(with)),
		logger.Int("without", len(without)),
	)
	return s, nil
}

func known(r *roster.Roster, ids []model.ParticipantID) []model.ParticipantID {
	out := make([]model.ParticipantID, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.Participant(id); ok {
			out = append(out, id)
		}
	}
	return out
}
