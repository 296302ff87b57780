package api

import (
	"errors"
	"net/http"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
	service "github.com/okian/matchpool/internal/app"
	"github.com/okian/matchpool/internal/domain/ledger"
	"github.com/okian/matchpool/internal/domain/session"
	"github.com/okian/matchpool/internal/domain/substitution"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// Error ties a failure to the handler operation and an API kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind reports a failure of op that has no underlying cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// classify maps domain errors to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, livews.ErrMalformed),
		errors.Is(err, livews.ErrUnknownType),
		errors.Is(err, session.ErrInvalidSetup),
		errors.Is(err, session.ErrInvalidEventType),
		errors.Is(err, session.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, substitution.ErrSamePlayer):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, session.ErrNoSuchWager),
		errors.Is(err, session.ErrUnknownParticipant),
		errors.Is(err, substitution.ErrUnknownPlayer),
		errors.Is(err, ledger.ErrUnknownPlayer):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrSessionExists),
		errors.Is(err, session.ErrNothingToUndo),
		errors.Is(err, substitution.ErrAlreadyActive),
		errors.Is(err, substitution.ErrAlreadyInactive):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ledger.ErrNoWager),
		errors.Is(err, ledger.ErrEmptyGroup),
		errors.Is(err, ledger.ErrNotWagering):
		return http.StatusUnprocessableEntity, "not_settled"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
