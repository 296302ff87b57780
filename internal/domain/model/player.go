// Package model contains domain models passed between layers.
package model

// PlayerID identifies a player inside a session.
type PlayerID string

// ParticipantID identifies a participant of the wager group.
type ParticipantID string

// PlayerStatus tracks whether a player is still on the pitch.
type PlayerStatus string

const (
	StatusActive         PlayerStatus = "active"
	StatusSubstitutedOff PlayerStatus = "substituted_off"
)

// Player is a footballer that participants can back.
type Player struct {
	ID         PlayerID     `json:"id"`
	Name       string       `json:"name"`
	Team       string       `json:"team"`
	ExternalID string       `json:"external_id,omitempty"` // live feed identifier
	Status     PlayerStatus `json:"status"`
}

// Participant is a person in the wager group with a running balance.
// Active and Substituted are ordered; a player in either set is owned by
// the participant.
type Participant struct {
	ID          ParticipantID `json:"id"`
	Name        string        `json:"name"`
	Balance     float64       `json:"balance"`
	Active      []PlayerID    `json:"active"`
	Substituted []PlayerID    `json:"substituted"`
}

// Owns reports whether the player is attributed to the participant,
// whether still active or already substituted off.
func (p *Participant) Owns(id PlayerID) bool {
	return containsPlayer(p.Active, id) || containsPlayer(p.Substituted, id)
}

// HasActive reports whether the player is in the participant's active set.
func (p *Participant) HasActive(id PlayerID) bool {
	return containsPlayer(p.Active, id)
}

// Clone returns a deep copy of the participant.
func (p Participant) Clone() Participant {
	p.Active = append([]PlayerID(nil), p.Active...)
	p.Substituted = append([]PlayerID(nil), p.Substituted...)
	return p
}

func containsPlayer(ids []PlayerID, id PlayerID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
