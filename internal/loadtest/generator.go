package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
	"github.com/okian/matchpool/internal/adapters/http/api"
	"github.com/okian/matchpool/internal/domain/model"
)

var wagers = []model.Wager{
	{EventType: model.EventGoal, Amount: 5},
	{EventType: model.EventAssist, Amount: 2},
	{EventType: model.EventYellowCard, Amount: -1},
	{EventType: model.EventRedCard, Amount: -10},
}

// sessionRequest builds a session where every participant owns its own
// block of players, so every generated event settles.
func sessionRequest(cfg *Config) (api.CreateSessionRequest, []string) {
	req := api.CreateSessionRequest{
		ID:      "load-" + uuid.NewString(),
		MatchID: cfg.MatchID,
		Wagers:  wagers,
	}
	var external []string
	for p := range cfg.Participants {
		part := model.Participant{
			ID:   model.ParticipantID(fmt.Sprintf("p%d", p+1)),
			Name: fmt.Sprintf("Participant %d", p+1),
		}
		team := "home"
		if p%2 == 1 {
			team = "away"
		}
		for i := range cfg.PlayersPerParticipant {
			id := model.PlayerID(fmt.Sprintf("pl-%d-%d", p+1, i+1))
			ext := fmt.Sprintf("%s-%d-%d", team, p+1, i+1)
			req.Available = append(req.Available, model.Player{
				ID:         id,
				Name:       fmt.Sprintf("Player %d.%d", p+1, i+1),
				Team:       team,
				ExternalID: ext,
			})
			part.Active = append(part.Active, id)
			external = append(external, ext)
		}
		req.Participants = append(req.Participants, part)
	}
	return req, external
}

// generateMessages returns NumEvents unique scoring messages followed by
// redeliveries of random earlier ones, shuffled.
func generateMessages(cfg *Config, players []string, rng *rand.Rand) []livews.ScoreMessage {
	msgs := make([]livews.ScoreMessage, 0, cfg.NumEvents)
	for i := range cfg.NumEvents {
		minute := 1 + rng.IntN(90)
		msgs = append(msgs, livews.ScoreMessage{
			MT:      livews.TypeScore,
			ID:      fmt.Sprintf("%s-%d", cfg.MatchID, i),
			MatchID: cfg.MatchID,
			Type:    string(wagers[rng.IntN(len(wagers))].EventType),
			Player:  players[rng.IntN(len(players))],
			Minute:  &minute,
		})
	}
	dups := int(float64(cfg.NumEvents) * cfg.DuplicateRatio)
	for range dups {
		msgs = append(msgs, msgs[rng.IntN(cfg.NumEvents)])
	}
	rng.Shuffle(len(msgs), func(i, j int) { msgs[i], msgs[j] = msgs[j], msgs[i] })
	return msgs
}
