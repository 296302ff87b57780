// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/matchpool/internal/app"
	"github.com/okian/matchpool/internal/domain/dedupe"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/session"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	FeedDependencies
}

// SessionDependencies host the sessions addressed by the routes.
type SessionDependencies interface {
	CreateSession(ctx context.Context, setup session.Setup) (*session.Session, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) []service.Summary
}

// FeedDependencies accept pushed live feed notifications.
type FeedDependencies interface {
	dedupe.Deduper

	// Enqueue returns false on backpressure.
	Enqueue(ctx context.Context, n model.FeedNotification) bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	sessionsHandler      *SessionsHandler
	eventsHandler        *EventsHandler
	substitutionsHandler *SubstitutionsHandler
	wagersHandler        *WagersHandler
	standingsHandler     *StandingsHandler
	feedHandler          *FeedHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:        NewHealthHandler(),
		statsHandler:         NewStatsHandler(statsProvider),
		sessionsHandler:      NewSessionsHandler(deps),
		eventsHandler:        NewEventsHandler(deps),
		substitutionsHandler: NewSubstitutionsHandler(deps),
		wagersHandler:        NewWagersHandler(deps),
		standingsHandler:     NewStandingsHandler(deps),
		feedHandler:          NewFeedHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /sessions", "sessions", s.sessionsHandler.HandleCreate)
	route("GET /sessions", "sessions", s.sessionsHandler.HandleList)
	route("GET /sessions/{id}", "session", s.sessionsHandler.HandleGet)
	route("DELETE /sessions/{id}", "session", s.sessionsHandler.HandleDelete)

	route("POST /sessions/{id}/events", "events", s.eventsHandler.HandleSettle)
	route("POST /sessions/{id}/undo", "undo", s.eventsHandler.HandleUndo)
	route("POST /sessions/{id}/recalculate", "recalculate", s.eventsHandler.HandleRecalculate)

	route("POST /sessions/{id}/substitutions", "substitutions", s.substitutionsHandler.HandleSubstitute)
	route("GET /sessions/{id}/remaining", "remaining", s.substitutionsHandler.HandleRemaining)

	route("PUT /sessions/{id}/wagers/{type}", "wagers", s.wagersHandler.HandlePut)
	route("DELETE /sessions/{id}/wagers/{type}", "wagers", s.wagersHandler.HandleDelete)

	route("GET /sessions/{id}/standings", "standings", s.standingsHandler.HandleStandings)
	route("GET /sessions/{id}/players/{player}", "players", s.standingsHandler.HandlePlayer)
	route("GET /sessions/{id}/participants/{participant}/players", "players", s.standingsHandler.HandleActivePlayers)

	route("POST /feed", "feed", s.feedHandler.HandlePush)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err and writes it.
func fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func decode(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("decode body: %w", err))
	}
	return nil
}

// lookup resolves the {id} path value to a hosted session.
func lookup(r *http.Request, deps SessionDependencies) (*session.Session, error) {
	return deps.Session(r.Context(), r.PathValue("id"))
}
