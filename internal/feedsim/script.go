// Package feedsim serves a scripted live match over a websocket in the live
// feed wire format. It drives local end-to-end runs of the feed pipeline.
package feedsim

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
)

// ErrInvalidScript is returned when a script step cannot be rendered.
var ErrInvalidScript = errors.New("invalid script")

// Step is one scripted feed message, sent After the previous one.
type Step struct {
	After  time.Duration `yaml:"after"`
	Type   string        `yaml:"type"` // sub or score
	ID     string        `yaml:"id"`
	Out    string        `yaml:"out"`
	In     string        `yaml:"in"`
	Team   string        `yaml:"team"`
	Event  string        `yaml:"event"`
	Player string        `yaml:"player"`
	Minute *int          `yaml:"minute"`
}

// Script is a match replayed to every connecting client.
type Script struct {
	MatchID string `yaml:"match_id"`
	Steps   []Step `yaml:"steps"`
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Script{}, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	if _, err := s.Frames(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// Frames renders every step as a wire message value.
func (s Script) Frames() ([]any, error) {
	if s.MatchID == "" {
		return nil, fmt.Errorf("%w: match_id is required", ErrInvalidScript)
	}
	out := make([]any, 0, len(s.Steps))
	for i, st := range s.Steps {
		id := st.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", s.MatchID, i+1)
		}
		switch st.Type {
		case livews.TypeSubstitution:
			if st.Out == "" || st.In == "" {
				return nil, fmt.Errorf("%w: step %d: sub needs out and in", ErrInvalidScript, i+1)
			}
			out = append(out, livews.SubMessage{
				MT: livews.TypeSubstitution, ID: id, MatchID: s.MatchID,
				Out: st.Out, In: st.In, Minute: st.Minute, Team: st.Team,
			})
		case livews.TypeScore:
			if st.Player == "" || st.Event == "" {
				return nil, fmt.Errorf("%w: step %d: score needs player and event", ErrInvalidScript, i+1)
			}
			out = append(out, livews.ScoreMessage{
				MT: livews.TypeScore, ID: id, MatchID: s.MatchID,
				Type: st.Event, Player: st.Player, Minute: st.Minute,
			})
		default:
			return nil, fmt.Errorf("%w: step %d: unknown type %q", ErrInvalidScript, i+1, st.Type)
		}
	}
	return out, nil
}

func minute(m int) *int { return &m }

// DefaultScript is a short match between two sides whose players carry
// external ids home-1..home-14 and away-1..away-14.
func DefaultScript(matchID string) Script {
	return Script{
		MatchID: matchID,
		Steps: []Step{
			{After: time.Second, Type: livews.TypeScore, Event: "goal", Player: "home-9", Minute: minute(7)},
			{After: time.Second, Type: livews.TypeScore, Event: "yellow_card", Player: "away-4", Minute: minute(19)},
			{After: time.Second, Type: livews.TypeScore, Event: "assist", Player: "home-10", Minute: minute(33)},
			{After: time.Second, Type: livews.TypeSubstitution, Out: "home-9", In: "home-12", Team: "home", Minute: minute(58)},
			{After: time.Second, Type: livews.TypeScore, Event: "goal", Player: "home-9", Minute: minute(58)},
			{After: time.Second, Type: livews.TypeSubstitution, Out: "away-7", In: "away-14", Team: "away", Minute: minute(64)},
			{After: time.Second, Type: livews.TypeScore, Event: "red_card", Player: "away-4", Minute: minute(71)},
			{After: time.Second, Type: livews.TypeScore, Event: "goal", Player: "away-14", Minute: minute(80)},
			{After: time.Second, Type: livews.TypeScore, Event: "penalty_missed", Player: "home-12", Minute: minute(88)},
		},
	}
}
