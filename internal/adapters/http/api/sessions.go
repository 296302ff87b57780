package api

import (
	"net/http"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/session"
)

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	ID                string              `json:"id,omitempty"`
	MatchID           string              `json:"match_id,omitempty"`
	Participants      []model.Participant `json:"participants"`
	Wagers            []model.Wager       `json:"wagers"`
	Available         []model.Player      `json:"available_players"`
	Selected          []model.PlayerID    `json:"selected_players"`
	SubstitutionLimit int                 `json:"substitution_limit,omitempty"`
}

// SessionsHandler creates, lists, fetches and deletes sessions.
type SessionsHandler struct {
	deps SessionDependencies
}

func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.sessions.create"
	var req CreateSessionRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	sess, err := h.deps.CreateSession(r.Context(), session.Setup{
		ID:                req.ID,
		MatchID:           req.MatchID,
		Participants:      req.Participants,
		Wagers:            req.Wagers,
		Available:         req.Available,
		Selected:          req.Selected,
		SubstitutionLimit: req.SubstitutionLimit,
	})
	if err != nil {
		fail(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.deps.ListSessions(r.Context())})
}

func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
