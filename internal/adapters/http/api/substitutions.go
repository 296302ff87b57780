package api

import (
	"net/http"
	"time"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/substitution"
)

// SubstituteRequest is the body of POST /sessions/{id}/substitutions.
type SubstituteRequest struct {
	Off       model.PlayerID `json:"off"`
	On        model.PlayerID `json:"on"`
	Team      string         `json:"team,omitempty"`
	Minute    *int           `json:"minute,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// SubstituteResponse reports what a substitution did.
type SubstituteResponse struct {
	Kind         substitution.Kind  `json:"kind"`
	Event        model.GameEvent    `json:"event"`
	Substitution model.Substitution `json:"substitution"`
	Reason       string             `json:"reason,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	Version      uint64             `json:"version"`
}

// SubstitutionsHandler applies manual substitutions.
type SubstitutionsHandler struct {
	deps SessionDependencies
}

func NewSubstitutionsHandler(deps SessionDependencies) *SubstitutionsHandler {
	return &SubstitutionsHandler{deps: deps}
}

func (h *SubstitutionsHandler) HandleSubstitute(w http.ResponseWriter, r *http.Request) {
	const op = "api.substitutions.apply"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	var req SubstituteRequest
	if err := decode(r, op, &req); err != nil {
		fail(w, err)
		return
	}
	if req.Off == "" || req.On == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	sr := substitution.Request{
		Off:    req.Off,
		On:     req.On,
		Team:   req.Team,
		Minute: req.Minute,
		Source: model.SourceManual,
	}
	if req.Timestamp != nil {
		sr.Timestamp = *req.Timestamp
	}

	out, err := sess.Substitute(r.Context(), sr)
	if err != nil {
		fail(w, err)
		return
	}
	resp := SubstituteResponse{
		Kind:         out.Kind,
		Event:        out.Event,
		Substitution: out.Substitution,
		Warnings:     out.Warnings,
		Version:      sess.Version(),
	}
	if out.Reason != nil {
		resp.Reason = out.Reason.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *SubstitutionsHandler) HandleRemaining(w http.ResponseWriter, r *http.Request) {
	const op = "api.substitutions.remaining"
	sess, err := lookup(r, h.deps)
	if err != nil {
		fail(w, err)
		return
	}
	team := r.URL.Query().Get("team")
	if team == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team":      team,
		"remaining": sess.RemainingSubstitutions(team),
	})
}
