// Package types contains read shapes shared by the session, the service and the HTTP API.
package types

import (
	"cmp"
	"slices"

	"github.com/okian/matchpool/internal/domain/model"
)

// Standing is one row of a session's ranking.
type Standing struct {
	Rank          int                 `json:"rank"`
	ParticipantID model.ParticipantID `json:"participant_id"`
	Name          string              `json:"name"`
	Balance       float64             `json:"balance"`
}

// PlayerView describes a player and who it is attributed to.
type PlayerView struct {
	Player model.Player        `json:"player"`
	Owner  model.ParticipantID `json:"owner,omitempty"`
	Active bool                `json:"active"`
}

// Rank orders standings by balance descending then participant id ascending
// and assigns competition ranks: equal balances share a rank and the next
// distinct balance skips ahead (1, 1, 3).
func Rank(in []Standing) []Standing {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Balance, a.Balance); c != 0 {
			return c
		}
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})
	for i := range out {
		if i > 0 && out[i].Balance == out[i-1].Balance {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
