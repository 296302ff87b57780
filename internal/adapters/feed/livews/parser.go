package livews

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/matchpool/internal/domain/model"
)

// Parse decodes one frame into a feed notification stamped with received.
func Parse(raw []byte, received time.Time) (model.FeedNotification, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.FeedNotification{}, fmt.Errorf("%w: envelope: %w", ErrMalformed, err)
	}

	switch env.MT {
	case TypeSubstitution:
		return parseSub(raw, received)
	case TypeScore:
		return parseScore(raw, received)
	default:
		return model.FeedNotification{}, fmt.Errorf("%w: %q", ErrUnknownType, env.MT)
	}
}

func parseSub(raw []byte, received time.Time) (model.FeedNotification, error) {
	var msg SubMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.FeedNotification{}, fmt.Errorf("%w: sub: %w", ErrMalformed, err)
	}
	if msg.ID == "" || msg.MatchID == "" || msg.Out == "" || msg.In == "" {
		return model.FeedNotification{}, fmt.Errorf("%w: sub %q missing id, match_id, out or in", ErrMalformed, msg.ID)
	}
	return model.FeedNotification{
		ID:      msg.ID,
		MatchID: msg.MatchID,
		Kind:    model.NotificationSubstitution,
		Substitution: &model.LiveSubstitution{
			OutExternalID: msg.Out,
			InExternalID:  msg.In,
			Minute:        msg.Minute,
			TeamID:        msg.Team,
		},
		Received: received,
	}, nil
}

func parseScore(raw []byte, received time.Time) (model.FeedNotification, error) {
	var msg ScoreMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.FeedNotification{}, fmt.Errorf("%w: score: %w", ErrMalformed, err)
	}
	if msg.ID == "" || msg.MatchID == "" || msg.Player == "" {
		return model.FeedNotification{}, fmt.Errorf("%w: score %q missing id, match_id or player", ErrMalformed, msg.ID)
	}
	et, err := model.ParseEventType(msg.Type)
	if err != nil {
		return model.FeedNotification{}, fmt.Errorf("%w: score %q: %w", ErrMalformed, msg.ID, err)
	}
	return model.FeedNotification{
		ID:      msg.ID,
		MatchID: msg.MatchID,
		Kind:    model.NotificationScoring,
		Scoring: &model.LiveScoring{
			EventType:        et,
			PlayerExternalID: msg.Player,
			Minute:           msg.Minute,
		},
		Received: received,
	}, nil
}
