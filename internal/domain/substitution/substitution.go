// Package substitution turns manual and live-feed substitutions into a single
// roster mutation plus a timeline entry.
//
// The roster is either fully updated or left untouched. When the owner of the
// outgoing player cannot be determined but the players are known, the change
// is still recorded on the timeline so the match history stays complete.
package substitution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/roster"
	"github.com/okian/matchpool/pkg/logger"
)

// DefaultLimit is the number of substitutions per team reported by Remaining.
const DefaultLimit = 5

// Kind tells what a substitution did to the session.
type Kind string

const (
	// KindApplied means the roster changed and a timeline entry was added.
	KindApplied Kind = "applied"
	// KindTimelineOnly means only a timeline entry was added.
	KindTimelineOnly Kind = "timeline_only"
)

// Request is a substitution expressed in local player ids.
type Request struct {
	Off       model.PlayerID
	On        model.PlayerID
	Team      string // defaults to the outgoing player's team
	Minute    *int
	Source    model.Source
	Timestamp time.Time
}

// Outcome describes an accepted substitution.
type Outcome struct {
	Kind         Kind
	Event        model.GameEvent
	Substitution model.Substitution
	// Reason is set for timeline-only outcomes.
	Reason   error
	Warnings []string
}

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLimit sets the per-team substitution allowance used by Remaining.
func WithLimit(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.limit = n
		}
	}
}

// WithClock overrides the time source for timeline entries.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how timeline event ids are produced.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// Coordinator is stateless apart from its configuration; the roster is
// passed explicitly and must be guarded by the caller.
type Coordinator struct {
	logger logger.Logger
	limit  int
	now    func() time.Time
	newID  func() string
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger: logger.NewNop(),
		limit:  DefaultLimit,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limit returns the configured per-team allowance.
func (c *Coordinator) Limit() int { return c.limit }

// Substitute swaps off for on in the roster of the participant that has off
// active. Rejected substitutions return an error and leave the roster as it
// was. A missing owner with both players known degrades to a timeline-only
// outcome.
func (c *Coordinator) Substitute(ctx context.Context, req Request, r *roster.Roster) (Outcome, error) {
	if req.Off == req.On {
		return Outcome{}, fmt.Errorf("substitute: %w: %s", ErrSamePlayer, req.Off)
	}
	offPl, ok := r.Player(req.Off)
	if !ok {
		return Outcome{}, fmt.Errorf("substitute: %w: %s", ErrUnknownPlayer, req.Off)
	}
	onPl, ok := r.Player(req.On)
	if !ok {
		return Outcome{}, fmt.Errorf("substitute: %w: %s", ErrUnknownPlayer, req.On)
	}
	if r.IsSubstituted(req.Off) {
		c.logger.Warn(ctx, "outgoing player already substituted off",
			logger.String("player", string(req.Off)))
		return Outcome{}, fmt.Errorf("substitute: %w: %s", ErrAlreadyInactive, req.Off)
	}
	if r.IsActive(req.On) {
		c.logger.Warn(ctx, "incoming player already active",
			logger.String("player", string(req.On)))
		return Outcome{}, fmt.Errorf("substitute: %w: %s", ErrAlreadyActive, req.On)
	}
	if r.IsSubstituted(req.On) {
		return Outcome{}, fmt.Errorf("substitute: %w: %s", ErrAlreadyInactive, req.On)
	}

	var warnings []string
	if offPl.Team != "" && onPl.Team != "" && offPl.Team != onPl.Team {
		w := fmt.Sprintf("cross-team substitution %s (%s) -> %s (%s)", offPl.Name, offPl.Team, onPl.Name, onPl.Team)
		warnings = append(warnings, w)
		c.logger.Warn(ctx, "cross-team substitution",
			logger.String("off", string(req.Off)),
			logger.String("on", string(req.On)),
			logger.String("off_team", offPl.Team),
			logger.String("on_team", onPl.Team),
		)
	}

	owner, ok := r.ActiveOwnerOf(req.Off)
	if !ok {
		c.logger.Info(ctx, "no owner for outgoing player; recording timeline only",
			logger.String("off", string(req.Off)),
			logger.String("on", string(req.On)),
		)
		out := c.outcome(req, offPl, displayName(onPl), "")
		out.Kind = KindTimelineOnly
		out.Reason = ErrOwnerNotFound
		out.Warnings = warnings
		return out, nil
	}

	if err := r.Swap(owner, req.Off, req.On); err != nil {
		return Outcome{}, fmt.Errorf("substitute: %w", err)
	}

	c.logger.Debug(ctx, "substitution applied",
		logger.String("participant", string(owner)),
		logger.String("off", string(req.Off)),
		logger.String("on", string(req.On)),
		logger.String("source", string(req.Source)),
	)
	out := c.outcome(req, offPl, displayName(onPl), owner)
	out.Kind = KindApplied
	out.Warnings = warnings
	return out, nil
}

// SubstituteLive resolves a live-feed substitution and applies it. Ids are
// looked up against the active players first and the whole available pool
// second. If neither id resolves the notification is dropped with
// ErrUnresolved; if only one resolves a timeline-only outcome is returned.
func (c *Coordinator) SubstituteLive(ctx context.Context, ls model.LiveSubstitution, r *roster.Roster) (Outcome, error) {
	offPl, offOK := resolve(r, ls.OutExternalID)
	onPl, onOK := resolve(r, ls.InExternalID)

	// Local team names win over feed team ids so Remaining counts both sources together.
	team := ls.TeamID
	switch {
	case offOK && offPl.Team != "":
		team = offPl.Team
	case onOK && onPl.Team != "":
		team = onPl.Team
	}
	req := Request{
		Off:    offPl.ID,
		On:     onPl.ID,
		Team:   team,
		Minute: ls.Minute,
		Source: model.SourceLive,
	}

	switch {
	case !offOK && !onOK:
		c.logger.Warn(ctx, "live substitution unresolved; dropping",
			logger.String("out", ls.OutExternalID),
			logger.String("in", ls.InExternalID),
		)
		return Outcome{}, fmt.Errorf("substitute live: %w: out=%q in=%q", ErrUnresolved, ls.OutExternalID, ls.InExternalID)
	case !offOK || !onOK:
		c.logger.Warn(ctx, "live substitution partially resolved; recording timeline only",
			logger.String("out", ls.OutExternalID),
			logger.String("in", ls.InExternalID),
			logger.Bool("out_resolved", offOK),
			logger.Bool("in_resolved", onOK),
		)
		if !offOK {
			offPl = model.Player{Name: ls.OutExternalID, Team: ls.TeamID}
		}
		onName := displayName(onPl)
		if !onOK {
			onName = ls.InExternalID
		}
		out := c.outcome(req, offPl, onName, "")
		if !offOK {
			out.Event.PlayerID = onPl.ID
		}
		out.Kind = KindTimelineOnly
		out.Reason = ErrUnresolved
		return out, nil
	}

	return c.Substitute(ctx, req, r)
}

// Remaining reports how many substitutions the team has left under the
// configured allowance, counting every recorded substitution for the team.
// It never goes below zero and is never enforced here.
func (c *Coordinator) Remaining(team string, subs []model.Substitution) int {
	used := 0
	for _, s := range subs {
		if s.Team == team {
			used++
		}
	}
	if left := c.limit - used; left > 0 {
		return left
	}
	return 0
}

func (c *Coordinator) outcome(req Request, off model.Player, onName string, owner model.ParticipantID) Outcome {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	team := req.Team
	if team == "" {
		team = off.Team
	}
	source := req.Source
	if source == "" {
		source = model.SourceManual
	}
	var evMinute, subMinute *int
	if req.Minute != nil {
		evMinute, subMinute = model.Minute(*req.Minute), model.Minute(*req.Minute)
	}
	return Outcome{
		Event: model.GameEvent{
			ID:           c.newID(),
			PlayerID:     req.Off,
			Type:         model.EventCustom,
			Timestamp:    ts,
			Minute:       evMinute,
			Label:        model.SubstitutionLabel(displayName(off), onName),
			TimelineOnly: true,
		},
		Substitution: model.Substitution{
			Off:         req.Off,
			On:          req.On,
			Timestamp:   ts,
			Team:        team,
			Minute:      subMinute,
			Source:      source,
			Participant: owner,
		},
	}
}

func resolve(r *roster.Roster, ext string) (model.Player, bool) {
	if pl, ok := r.ActiveByExternalID(ext); ok {
		return pl, true
	}
	return r.AvailableByExternalID(ext)
}

func displayName(p model.Player) string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}
