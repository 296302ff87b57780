package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EventType is the kind of match event a wager can be tied to.
type EventType string

const (
	EventGoal          EventType = "goal"
	EventAssist        EventType = "assist"
	EventYellowCard    EventType = "yellow_card"
	EventRedCard       EventType = "red_card"
	EventOwnGoal       EventType = "own_goal"
	EventPenaltyMissed EventType = "penalty_missed"
	EventPenaltySaved  EventType = "penalty_saved"
	EventCustom        EventType = "custom"
)

var eventTypes = []EventType{
	EventGoal,
	EventAssist,
	EventYellowCard,
	EventRedCard,
	EventOwnGoal,
	EventPenaltyMissed,
	EventPenaltySaved,
	EventCustom,
}

// EventTypes lists every known event type in display order.
func EventTypes() []EventType {
	return append([]EventType(nil), eventTypes...)
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, v := range eventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseEventType accepts snake_case, kebab-case, camelCase and spaced forms,
// e.g. "red_card", "red-card", "redCard", "Red Card".
func ParseEventType(s string) (EventType, error) {
	s = strings.TrimSpace(s)
	if s == strings.ToUpper(s) {
		s = strings.ToLower(s)
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	t := EventType(strings.ReplaceAll(b.String(), "__", "_"))
	if !t.Valid() {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Wager ties a signed amount to an event type. A non-negative amount means
// non-owners fund owners; a negative amount means owners fund non-owners.
type Wager struct {
	EventType EventType `json:"event_type"`
	Amount    float64   `json:"amount"`
}

// Positive reports whether the wager pays the owners of the player.
func (w Wager) Positive() bool { return w.Amount >= 0 }

// Settlement records how one event moved balances. The partition is captured
// at settlement time so undo and replay do not depend on the roster later on.
type Settlement struct {
	Amount  float64                   `json:"amount"`
	With    []ParticipantID           `json:"with"`
	Without []ParticipantID           `json:"without"`
	Deltas  map[ParticipantID]float64 `json:"deltas"`
}

// Sum returns the total of all deltas; zero up to float rounding.
func (s Settlement) Sum() float64 {
	var sum float64
	for _, d := range s.Deltas {
		sum += d
	}
	return sum
}

// Volume returns the amount that changed hands.
func (s Settlement) Volume() float64 {
	var v float64
	for _, d := range s.Deltas {
		if d > 0 {
			v += d
		}
	}
	return v
}

// Clone returns a deep copy.
func (s Settlement) Clone() Settlement {
	c := Settlement{
		Amount:  s.Amount,
		With:    append([]ParticipantID(nil), s.With...),
		Without: append([]ParticipantID(nil), s.Without...),
	}
	if s.Deltas != nil {
		c.Deltas = make(map[ParticipantID]float64, len(s.Deltas))
		for id, d := range s.Deltas {
			c.Deltas[id] = d
		}
	}
	return c
}

// Balanced reports whether the settlement is zero-sum within eps.
func (s Settlement) Balanced(eps float64) bool {
	return math.Abs(s.Sum()) <= eps
}

// GameEvent is one entry of the session timeline.
type GameEvent struct {
	ID        string    `json:"id"`
	PlayerID  PlayerID  `json:"player_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Minute    *int      `json:"minute,omitempty"`
	Label     string    `json:"label,omitempty"`

	// TimelineOnly entries (substitutions) never reach the ledger.
	TimelineOnly bool        `json:"timeline_only,omitempty"`
	Settlement   *Settlement `json:"settlement,omitempty"`
}

// Wagering reports whether the event takes part in settlement.
func (e GameEvent) Wagering() bool { return !e.TimelineOnly }

// Source tells where a substitution came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceLive   Source = "live"
)

// Substitution is a recorded player change.
type Substitution struct {
	Off         PlayerID      `json:"off"`
	On          PlayerID      `json:"on"`
	Timestamp   time.Time     `json:"timestamp"`
	Team        string        `json:"team"`
	Minute      *int          `json:"minute,omitempty"`
	Source      Source        `json:"source"`
	Participant ParticipantID `json:"participant,omitempty"` // empty when only the timeline was updated
}

// SubstitutionLabel renders the timeline label for a substitution.
func SubstitutionLabel(off, on string) string {
	return "Substitution: " + off + " → " + on
}

// Minute returns a pointer to m, for optional minute fields.
func Minute(m int) *int { return &m }
