// Package roster holds participants, the players they back and the player
// pools of a session.
//
// A player id is active for at most one participant. Once substituted off a
// player stays attributed to the same participant, so ownership queries keep
// answering for it.
package roster

import (
	"fmt"

	"github.com/okian/matchpool/internal/domain/model"
)

// Roster is not safe for concurrent use; the owning session serializes access.
type Roster struct {
	participants []*model.Participant
	byID         map[model.ParticipantID]*model.Participant

	players  map[model.PlayerID]*model.Player
	order    []model.PlayerID // available pool in insertion order
	selected []model.PlayerID
}

// New builds a roster and checks exclusivity and that every referenced
// player is part of the available pool.
func New(participants []model.Participant, available []model.Player, selected []model.PlayerID) (*Roster, error) {
	r := &Roster{
		byID:    make(map[model.ParticipantID]*model.Participant, len(participants)),
		players: make(map[model.PlayerID]*model.Player, len(available)),
	}

	for _, pl := range available {
		if _, dup := r.players[pl.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, pl.ID)
		}
		if pl.Status == "" {
			pl.Status = model.StatusActive
		}
		r.players[pl.ID] = &pl
		r.order = append(r.order, pl.ID)
	}

	// one owner per player across active and substituted sets
	owner := make(map[model.PlayerID]model.ParticipantID)
	for _, p := range participants {
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.ID)
		}
		cp := p.Clone()
		claim := func(id model.PlayerID) error {
			if _, ok := r.players[id]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
			}
			if prev, taken := owner[id]; taken {
				if prev == cp.ID {
					return fmt.Errorf("%w: %s listed twice for %s", ErrExclusivity, id, cp.ID)
				}
				return fmt.Errorf("%w: %s (%s, %s)", ErrExclusivity, id, prev, cp.ID)
			}
			owner[id] = cp.ID
			return nil
		}
		for _, id := range cp.Active {
			if err := claim(id); err != nil {
				return nil, err
			}
		}
		for _, id := range cp.Substituted {
			if err := claim(id); err != nil {
				return nil, err
			}
			r.players[id].Status = model.StatusSubstitutedOff
		}
		r.participants = append(r.participants, &cp)
		r.byID[cp.ID] = &cp
	}

	for _, id := range selected {
		if _, ok := r.players[id]; !ok {
			return nil, fmt.Errorf("%w: selected %s", ErrUnknownPlayer, id)
		}
		r.selected = appendUnique(r.selected, id)
	}

	return r, nil
}

// OwnerOf returns the participant the player is attributed to, active or substituted.
func (r *Roster) OwnerOf(id model.PlayerID) (model.ParticipantID, bool) {
	for _, p := range r.participants {
		if p.Owns(id) {
			return p.ID, true
		}
	}
	return "", false
}

// ActiveOwnerOf returns the participant whose active set holds the player.
func (r *Roster) ActiveOwnerOf(id model.PlayerID) (model.ParticipantID, bool) {
	for _, p := range r.participants {
		if p.HasActive(id) {
			return p.ID, true
		}
	}
	return "", false
}

// IsActive reports whether any participant has the player in its active set.
func (r *Roster) IsActive(id model.PlayerID) bool {
	_, ok := r.ActiveOwnerOf(id)
	return ok
}

// IsSubstituted reports whether any participant holds the player as substituted off.
func (r *Roster) IsSubstituted(id model.PlayerID) bool {
	for _, p := range r.participants {
		for _, s := range p.Substituted {
			if s == id {
				return true
			}
		}
	}
	return false
}

// ActivePlayers returns the participant's active players in order.
func (r *Roster) ActivePlayers(pid model.ParticipantID) ([]model.Player, error) {
	p, ok := r.byID[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, pid)
	}
	out := make([]model.Player, 0, len(p.Active))
	for _, id := range p.Active {
		if pl, ok := r.players[id]; ok {
			out = append(out, *pl)
		}
	}
	return out, nil
}

// Partition splits participants into those who own the player and those who do not.
// Both slices follow participant order.
func (r *Roster) Partition(id model.PlayerID) (with, without []model.ParticipantID) {
	for _, p := range r.participants {
		if p.Owns(id) {
			with = append(with, p.ID)
		} else {
			without = append(without, p.ID)
		}
	}
	return with, without
}

// Player looks up a player of the available pool.
func (r *Roster) Player(id model.PlayerID) (model.Player, bool) {
	pl, ok := r.players[id]
	if !ok {
		return model.Player{}, false
	}
	return *pl, true
}

// ActiveByExternalID resolves a live feed id against players currently active
// for some participant.
func (r *Roster) ActiveByExternalID(ext string) (model.Player, bool) {
	if ext == "" {
		return model.Player{}, false
	}
	for _, p := range r.participants {
		for _, id := range p.Active {
			if pl := r.players[id]; pl != nil && pl.ExternalID == ext {
				return *pl, true
			}
		}
	}
	return model.Player{}, false
}

// AvailableByExternalID resolves a live feed id against the whole available pool.
func (r *Roster) AvailableByExternalID(ext string) (model.Player, bool) {
	if ext == "" {
		return model.Player{}, false
	}
	for _, id := range r.order {
		if pl := r.players[id]; pl.ExternalID == ext {
			return *pl, true
		}
	}
	return model.Player{}, false
}

// Participant returns a copy of one participant.
func (r *Roster) Participant(pid model.ParticipantID) (model.Participant, bool) {
	p, ok := r.byID[pid]
	if !ok {
		return model.Participant{}, false
	}
	return p.Clone(), true
}

// Participants returns copies of all participants in order.
func (r *Roster) Participants() []model.Participant {
	out := make([]model.Participant, len(r.participants))
	for i, p := range r.participants {
		out[i] = p.Clone()
	}
	return out
}

// Len returns the number of participants.
func (r *Roster) Len() int { return len(r.participants) }

// Balances returns the current balance of every participant.
func (r *Roster) Balances() map[model.ParticipantID]float64 {
	out := make(map[model.ParticipantID]float64, len(r.participants))
	for _, p := range r.participants {
		out[p.ID] = p.Balance
	}
	return out
}

// Available returns the available pool in order.
func (r *Roster) Available() []model.Player {
	out := make([]model.Player, len(r.order))
	for i, id := range r.order {
		out[i] = *r.players[id]
	}
	return out
}

// Selected returns the selectable pool in order.
func (r *Roster) Selected() []model.PlayerID {
	return append([]model.PlayerID(nil), r.selected...)
}

// Adjust adds delta to the participant's balance.
func (r *Roster) Adjust(pid model.ParticipantID, delta float64) error {
	p, ok := r.byID[pid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, pid)
	}
	p.Balance += delta
	return nil
}

// ResetBalances sets every balance to zero.
func (r *Roster) ResetBalances() {
	for _, p := range r.participants {
		p.Balance = 0
	}
}

// Swap moves off from the participant's active set to its substituted set,
// makes on active for the same participant and fixes up the player pools so
// off leaves the selectable pool and on is present exactly once. Everything is
// checked before anything changes.
func (r *Roster) Swap(pid model.ParticipantID, off, on model.PlayerID) error {
	p, ok := r.byID[pid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, pid)
	}
	if !p.HasActive(off) {
		return fmt.Errorf("%w: %s/%s", ErrNotActive, pid, off)
	}
	incoming, ok := r.players[on]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, on)
	}
	if owner, taken := r.ActiveOwnerOf(on); taken {
		return fmt.Errorf("%w: %s (%s)", ErrExclusivity, on, owner)
	}
	if r.IsSubstituted(on) {
		return fmt.Errorf("%w: %s", ErrSubstitutedOff, on)
	}

	p.Active = removePlayer(p.Active, off)
	p.Substituted = appendUnique(p.Substituted, off)
	p.Active = appendUnique(p.Active, on)

	if outgoing := r.players[off]; outgoing != nil {
		outgoing.Status = model.StatusSubstitutedOff
	}
	incoming.Status = model.StatusActive

	r.selected = appendUnique(removePlayer(r.selected, off), on)
	return nil
}

func removePlayer(ids []model.PlayerID, id model.PlayerID) []model.PlayerID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(ids []model.PlayerID, id model.PlayerID) []model.PlayerID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
