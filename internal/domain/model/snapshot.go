package model

import "time"

// Snapshot is the plain persistence shape of a session. The core produces
// and accepts it but never stores it.
type Snapshot struct {
	ID                string         `json:"id"`
	MatchID           string         `json:"match_id,omitempty"`
	Participants      []Participant  `json:"participants"`
	Events            []GameEvent    `json:"events"`
	Wagers            []Wager        `json:"wagers"`
	Selected          []PlayerID     `json:"selected_players"`
	Available         []Player       `json:"available_players"`
	Substitutions     []Substitution `json:"substitutions"`
	SubstitutionLimit int            `json:"substitution_limit"`
	Version           uint64         `json:"version"`
	TakenAt           time.Time      `json:"taken_at"`
}
