package api

import (
	"net/http"

	"github.com/okian/matchpool/internal/domain/model"
)

// WagerRequest is the body of PUT /sessions/{id}/wagers/{type}.
type WagerRequest struct {
	Amount *float64 `json:"amount"`
}

// WagersHandler edits the wager table of a session. Edits apply to future
// settlements only; use recalculate to reprice history.
type WagersHandler struct {
	deps SessionDependencies
}

func NewWagersHandler(deps SessionDependencies) *WagersHandler {
	return &WagersHandler{deps: deps}
}

func (h *WagersHandler) eventType(r *http.Request, op string) (model.EventType, error) {
	t, err := model.ParseEventType(r.PathValue("type"))
	if err != nil {
		return "", WrapKind(op, ErrBadRequest, err)
	}
	return t, nil
}

func (h *WagersHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.wagers.put"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	t, err := h.eventType(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	var req WagerRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Amount == nil {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	if err := sess.SetWager(r.Context(), t, *req.Amount); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wagers": sess.Wagers(), "version": sess.Version()})
}

func (h *WagersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.wagers.delete"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	t, err := h.eventType(r, op)
	if err != nil {
		fail(w, err)
		return
	}
	if err := sess.RemoveWager(r.Context(), t); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wagers": sess.Wagers(), "version": sess.Version()})
}
