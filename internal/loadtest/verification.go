package loadtest

import (
	"fmt"
	"math"

	"github.com/okian/matchpool/internal/adapters/http/api"
	"github.com/okian/matchpool/internal/domain/model"
)

const epsilon = 1e-6

// verifyResults checks that every accepted notification settled once, that
// each settlement and the group as a whole are zero-sum, and that the
// standings agree with the balances.
func verifyResults(snap model.Snapshot, standings api.StandingsResponse, stats *Stats) error {
	if len(snap.Events) != stats.EventsAccepted {
		return fmt.Errorf("%w: %d events on the timeline, %d accepted", ErrVerification, len(snap.Events), stats.EventsAccepted)
	}

	for _, ev := range snap.Events {
		if ev.Settlement == nil {
			return fmt.Errorf("%w: event %s has no settlement", ErrVerification, ev.ID)
		}
		if !ev.Settlement.Balanced(epsilon) {
			return fmt.Errorf("%w: event %s settles to %.9f", ErrVerification, ev.ID, ev.Settlement.Sum())
		}
	}

	balances := make(map[model.ParticipantID]float64, len(snap.Participants))
	var total float64
	for _, p := range snap.Participants {
		balances[p.ID] = p.Balance
		total += p.Balance
	}
	if math.Abs(total) > epsilon*float64(len(snap.Events)+1) {
		return fmt.Errorf("%w: balances sum to %.9f", ErrVerification, total)
	}

	if len(standings.Standings) != len(snap.Participants) {
		return fmt.Errorf("%w: %d standings for %d participants", ErrVerification, len(standings.Standings), len(snap.Participants))
	}
	for i, row := range standings.Standings {
		if b, ok := balances[row.ParticipantID]; !ok || math.Abs(b-row.Balance) > epsilon {
			return fmt.Errorf("%w: standing for %s does not match its balance", ErrVerification, row.ParticipantID)
		}
		if i > 0 && row.Balance > standings.Standings[i-1].Balance {
			return fmt.Errorf("%w: standings out of order at %d", ErrVerification, i)
		}
	}
	return nil
}
