// Package livews consumes the live match feed over a websocket and turns its
// messages into feed notifications for the applier queue.
package livews

// Message types carried in the "mt" field of every frame.
const (
	TypeSubstitution = "sub"
	TypeScore        = "score"
)

// Envelope is decoded first to route a frame by its message type.
type Envelope struct {
	MT string `json:"mt"`
}

// SubMessage reports a substitution in a match.
type SubMessage struct {
	MT      string `json:"mt"`
	ID      string `json:"id"`
	MatchID string `json:"match_id"`
	Out     string `json:"out"`
	In      string `json:"in"`
	Minute  *int   `json:"minute,omitempty"`
	Team    string `json:"team,omitempty"`
}

// ScoreMessage reports a scoring event (goal, card, ...) for one player.
type ScoreMessage struct {
	MT      string `json:"mt"`
	ID      string `json:"id"`
	MatchID string `json:"match_id"`
	Type    string `json:"type"`
	Player  string `json:"player"`
	Minute  *int   `json:"minute,omitempty"`
}
