package api

import (
	"net/http"
	"time"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/session"
)

// SettleRequest is the body of POST /sessions/{id}/events. Type accepts the
// same spellings as the live feed ("red_card", "Red Card", "redCard").
type SettleRequest struct {
	PlayerID  model.PlayerID `json:"player_id"`
	Type      string         `json:"type"`
	Minute    *int           `json:"minute,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// EventResponse reports a settled or undone event with the new version.
type EventResponse struct {
	Event   model.GameEvent `json:"event"`
	Version uint64          `json:"version"`
	CanUndo bool            `json:"can_undo"`
}

// RecalculateResponse summarises a recalculation.
type RecalculateResponse struct {
	Policy     string                          `json:"policy"`
	Settled    int                             `json:"settled"`
	Skipped    int                             `json:"skipped"`
	Failed     int                             `json:"failed"`
	Balances   map[model.ParticipantID]float64 `json:"balances"`
	DurationMS float64                         `json:"duration_ms"`
	Version    uint64                          `json:"version"`
}

// EventsHandler settles, undoes and replays scoring events.
type EventsHandler struct {
	deps SessionDependencies
}

func NewEventsHandler(deps SessionDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

func (h *EventsHandler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	const op = "api.events.settle"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	var req SettleRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	if req.PlayerID == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	t, err := model.ParseEventType(req.Type)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	in := session.EventInput{PlayerID: req.PlayerID, Type: t, Minute: req.Minute}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	ev, err := sess.Settle(r.Context(), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, EventResponse{Event: ev, Version: sess.Version(), CanUndo: sess.CanUndo()})
}

func (h *EventsHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	ev, err := sess.Undo(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Event: ev, Version: sess.Version(), CanUndo: sess.CanUndo()})
}

func (h *EventsHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	rep, err := sess.Recalculate(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{
		Policy:     string(rep.Policy),
		Settled:    rep.Settled,
		Skipped:    rep.Skipped,
		Failed:     rep.Failed,
		Balances:   rep.Balances,
		DurationMS: float64(rep.Duration.Microseconds()) / 1000,
		Version:    sess.Version(),
	})
}
