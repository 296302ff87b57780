package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	service "github.com/okian/matchpool/internal/app"
	"github.com/okian/matchpool/internal/domain/ledger"
	"github.com/okian/matchpool/internal/domain/session"
	"github.com/okian/matchpool/internal/domain/substitution"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given wrapped domain errors", t, func() {
		cases := []struct {
			err    error
			status int
		}{
			{WrapKind("op", ErrBadRequest, errors.New("x")), http.StatusBadRequest},
			{fmt.Errorf("settle: %w", session.ErrInvalidEventType), http.StatusBadRequest},
			{fmt.Errorf("sub: %w", substitution.ErrSamePlayer), http.StatusBadRequest},
			{fmt.Errorf("%w: s1", service.ErrSessionNotFound), http.StatusNotFound},
			{session.ErrNoSuchWager, http.StatusNotFound},
			{service.ErrSessionExists, http.StatusConflict},
			{session.ErrNothingToUndo, http.StatusConflict},
			{ledger.ErrNoWager, http.StatusUnprocessableEntity},
			{NewKind("op", ErrBackpressure), http.StatusTooManyRequests},
			{service.ErrNotStarted, http.StatusServiceUnavailable},
			{errors.New("boom"), http.StatusInternalServerError},
		}

		Convey("Then each maps to its status", func() {
			for _, c := range cases {
				status, _ := classify(c.err)
				So(status, ShouldEqual, c.status)
			}
		})
	})

	Convey("Given an API error", t, func() {
		cause := errors.New("bad json")
		err := WrapKind("api.test", ErrBadRequest, cause)

		Convey("Then it unwraps to both the kind and the cause", func() {
			So(err, ShouldWrap, ErrBadRequest)
			So(err, ShouldWrap, cause)
			So(err.Error(), ShouldEqual, "api.test: bad request: bad json")
			So(NewKind("api.test", ErrNotFound).Error(), ShouldEqual, "api.test: not found")
		})
	})
}
