package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/types"
)

// StandingsResponse is the ranking of a session.
type StandingsResponse struct {
	Version   uint64           `json:"version"`
	Standings []types.Standing `json:"standings"`
}

// StandingsHandler serves rankings and player lookups.
type StandingsHandler struct {
	deps SessionDependencies
}

func NewStandingsHandler(deps SessionDependencies) *StandingsHandler {
	return &StandingsHandler{deps: deps}
}

// HandleStandings handles GET /sessions/{id}/standings. An optional
// ?top=N query limits the rows returned.
func (h *StandingsHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.standings.list"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	rows := sess.Standings()
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid top %q", raw)))
			return
		}
		if n < len(rows) {
			rows = rows[:n]
		}
	}
	writeJSON(w, http.StatusOK, StandingsResponse{Version: sess.Version(), Standings: rows})
}

func (h *StandingsHandler) HandlePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.standings.player"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	id := model.PlayerID(r.PathValue("player"))
	view, ok := sess.Player(id)
	if !ok {
		fail(w, WrapKind(op, ErrNotFound, fmt.Errorf("player %s", id)))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *StandingsHandler) HandleActivePlayers(w http.ResponseWriter, r *http.Request) {
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	players, err := sess.ActivePlayers(model.ParticipantID(r.PathValue("participant")))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}
