// Package replay rebuilds participant balances from the event history.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/matchpool/internal/domain/ledger"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/roster"
	"github.com/okian/matchpool/pkg/logger"
)

// Policy selects which ownership partition a replayed event is settled against.
type Policy string

const (
	// PolicyRecorded uses the partition stored with each event when it was settled.
	PolicyRecorded Policy = "recorded"
	// PolicyCurrent recomputes the partition from the roster as it is now.
	PolicyCurrent Policy = "current"
)

// ParsePolicy maps a configuration value to a Policy. Empty means recorded.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRecorded:
		return PolicyRecorded, nil
	case PolicyCurrent:
		return PolicyCurrent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Report summarizes one recalculation.
type Report struct {
	Policy  Policy
	Settled int
	Skipped int // timeline-only entries
	Failed  int // wagering events that no longer settle
	// Events is the history with refreshed settlement records.
	Events   []model.GameEvent
	Balances map[model.ParticipantID]float64
	Duration time.Duration
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPolicy sets the replay policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine replays events through a Ledger.
type Engine struct {
	ledger *ledger.Ledger
	policy Policy
	logger logger.Logger
}

// New creates an Engine settling through l.
func New(l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		policy: PolicyRecorded,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured policy.
func (e *Engine) Policy() Policy { return e.policy }

// Recalculate zeroes every balance and settles each wagering event in append
// order. Events that no longer settle keep no record and are counted as
// failed. If the replay is cancelled or hits an unbalanced settlement, the
// previous balances are put back and ErrAborted is returned.
func (e *Engine) Recalculate(ctx context.Context, events []model.GameEvent, wagers []model.Wager, r *roster.Roster) (Report, error) {
	start := time.Now()
	previous := r.Balances()
	rep := Report{
		Policy: e.policy,
		Events: make([]model.GameEvent, len(events)),
	}
	copy(rep.Events, events)

	r.ResetBalances()
	for i, ev := range rep.Events {
		if err := ctx.Err(); err != nil {
			restore(r, previous)
			return Report{}, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		if !ev.Wagering() {
			rep.Skipped++
			continue
		}

		var (
			s   model.Settlement
			err error
		)
		switch e.policy {
		case PolicyCurrent:
			s, err = e.ledger.Settle(ctx, ev, wagers, r)
		default:
			s, err = e.ledger.SettleRecorded(ctx, ev, wagers, r)
		}
		if errors.Is(err, ledger.ErrUnbalanced) {
			restore(r, previous)
			return Report{}, fmt.Errorf("%w: event %s: %w", ErrAborted, ev.ID, err)
		}
		if err != nil {
			e.logger.Debug(ctx, "replayed event did not settle",
				logger.String("event", ev.ID),
				logger.Error(err),
			)
			rep.Events[i].Settlement = nil
			rep.Failed++
			continue
		}
		rep.Events[i].Settlement = &s
		rep.Settled++
	}

	rep.Balances = r.Balances()
	rep.Duration = time.Since(start)
	e.logger.Info(ctx, "balances recalculated",
		logger.String("policy", string(e.policy)),
		logger.Int("settled", rep.Settled),
		logger.Int("skipped", rep.Skipped),
		logger.Int("failed", rep.Failed),
		logger.Duration("took", rep.Duration),
	)
	return rep, nil
}

func restore(r *roster.Roster, balances map[model.ParticipantID]float64) {
	r.ResetBalances()
	for id, b := range balances {
		_ = r.Adjust(id, b)
	}
}
