package substitution_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/roster"
	"github.com/okian/matchpool/internal/domain/substitution"
	. "github.com/smartystreets/goconvey/convey"
)

var fixed = time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)

func newRoster() *roster.Roster {
	r, err := roster.New(
		[]model.Participant{
			{ID: "p1", Active: []model.PlayerID{"x"}},
			{ID: "p2", Active: []model.PlayerID{"y"}},
		},
		[]model.Player{
			{ID: "x", Name: "Saka", Team: "ARS", ExternalID: "101"},
			{ID: "y", Name: "Rice", Team: "ARS", ExternalID: "102"},
			{ID: "z", Name: "Martinelli", Team: "ARS", ExternalID: "103"},
			{ID: "w", Name: "Palmer", Team: "CHE", ExternalID: "201"},
			{ID: "v", Name: "Jackson", Team: "CHE", ExternalID: "202"},
		},
		[]model.PlayerID{"x", "y"},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func newCoordinator() *substitution.Coordinator {
	n := 0
	return substitution.New(
		substitution.WithClock(func() time.Time { return fixed }),
		substitution.WithIDGenerator(func() string {
			n++
			return "sub-" + strconv.Itoa(n)
		}),
	)
}

func TestSubstitute(t *testing.T) {
	ctx := context.Background()

	Convey("Given p1 with x active and p2 with y active", t, func() {
		r := newRoster()
		c := newCoordinator()

		Convey("When x is substituted for z", func() {
			out, err := c.Substitute(ctx, substitution.Request{Off: "x", On: "z", Minute: model.Minute(60)}, r)

			Convey("Then the roster is updated and a timeline entry is produced", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindApplied)
				So(out.Event.TimelineOnly, ShouldBeTrue)
				So(out.Event.Type, ShouldEqual, model.EventCustom)
				So(out.Event.Label, ShouldEqual, "Substitution: Saka → Martinelli")
				So(out.Event.ID, ShouldEqual, "sub-1")
				So(out.Event.Timestamp, ShouldEqual, fixed)
				So(*out.Event.Minute, ShouldEqual, 60)

				So(out.Substitution.Participant, ShouldEqual, model.ParticipantID("p1"))
				So(out.Substitution.Team, ShouldEqual, "ARS")
				So(out.Substitution.Source, ShouldEqual, model.SourceManual)

				So(r.IsActive("x"), ShouldBeFalse)
				So(r.IsActive("z"), ShouldBeTrue)
				So(r.Selected(), ShouldResemble, []model.PlayerID{"y", "z"})
			})

			Convey("Then ownership of x persists with p1", func() {
				owner, ok := r.OwnerOf("x")
				So(ok, ShouldBeTrue)
				So(owner, ShouldEqual, model.ParticipantID("p1"))
			})

			Convey("Then substituting x again is rejected", func() {
				_, err := c.Substitute(ctx, substitution.Request{Off: "x", On: "v"}, r)
				So(err, ShouldWrap, substitution.ErrAlreadyInactive)
			})

			Convey("Then bringing x back on is rejected", func() {
				_, err := c.Substitute(ctx, substitution.Request{Off: "y", On: "x"}, r)
				So(err, ShouldWrap, substitution.ErrAlreadyInactive)
				So(r.IsActive("y"), ShouldBeTrue)
			})
		})

		Convey("When the incoming player is active for someone else", func() {
			_, err := c.Substitute(ctx, substitution.Request{Off: "x", On: "y"}, r)

			Convey("Then it is rejected and nothing changes", func() {
				So(err, ShouldWrap, substitution.ErrAlreadyActive)
				So(r.IsActive("x"), ShouldBeTrue)
				owner, _ := r.ActiveOwnerOf("y")
				So(owner, ShouldEqual, model.ParticipantID("p2"))
			})
		})

		Convey("When a player is unknown", func() {
			_, err := c.Substitute(ctx, substitution.Request{Off: "x", On: "ghost"}, r)
			So(err, ShouldWrap, substitution.ErrUnknownPlayer)
		})

		Convey("When off and on are the same player", func() {
			_, err := c.Substitute(ctx, substitution.Request{Off: "x", On: "x"}, r)
			So(err, ShouldWrap, substitution.ErrSamePlayer)
		})

		Convey("When nobody has the outgoing player active", func() {
			out, err := c.Substitute(ctx, substitution.Request{Off: "w", On: "v"}, r)

			Convey("Then only the timeline is updated", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindTimelineOnly)
				So(out.Reason, ShouldEqual, substitution.ErrOwnerNotFound)
				So(out.Substitution.Participant, ShouldBeEmpty)
				So(out.Event.Label, ShouldEqual, "Substitution: Palmer → Jackson")
				So(r.IsActive("v"), ShouldBeFalse)
			})
		})

		Convey("When the substitution crosses teams", func() {
			out, err := c.Substitute(ctx, substitution.Request{Off: "x", On: "w"}, r)

			Convey("Then it is applied with a warning", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindApplied)
				So(out.Warnings, ShouldHaveLength, 1)
				So(r.IsActive("w"), ShouldBeTrue)
			})
		})
	})
}

func TestSubstituteLive(t *testing.T) {
	ctx := context.Background()

	Convey("Given a roster with external ids", t, func() {
		r := newRoster()
		c := newCoordinator()

		Convey("When both ids resolve", func() {
			out, err := c.SubstituteLive(ctx, model.LiveSubstitution{
				OutExternalID: "101", InExternalID: "103", Minute: model.Minute(72), TeamID: "t-ars",
			}, r)

			Convey("Then the roster is updated from the live source", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindApplied)
				So(out.Substitution.Source, ShouldEqual, model.SourceLive)
				So(out.Substitution.Team, ShouldEqual, "ARS")
				So(r.IsActive("z"), ShouldBeTrue)
			})
		})

		Convey("When only the incoming id resolves", func() {
			out, err := c.SubstituteLive(ctx, model.LiveSubstitution{
				OutExternalID: "999", InExternalID: "103", TeamID: "t-ars",
			}, r)

			Convey("Then it degrades to a timeline entry without touching the roster", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindTimelineOnly)
				So(out.Reason, ShouldEqual, substitution.ErrUnresolved)
				So(out.Event.PlayerID, ShouldEqual, model.PlayerID("z"))
				So(out.Event.Label, ShouldEqual, "Substitution: 999 → Martinelli")
				So(out.Substitution.Team, ShouldEqual, "ARS")
				So(r.IsActive("z"), ShouldBeFalse)
				So(r.IsActive("x"), ShouldBeTrue)
			})
		})

		Convey("When only the outgoing id resolves", func() {
			out, err := c.SubstituteLive(ctx, model.LiveSubstitution{OutExternalID: "101", InExternalID: "998"}, r)

			Convey("Then the roster is untouched", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindTimelineOnly)
				So(out.Event.Label, ShouldEqual, "Substitution: Saka → 998")
				So(r.IsActive("x"), ShouldBeTrue)
			})
		})

		Convey("When the feed minute is changed after the call", func() {
			minute := model.Minute(64)
			out, err := c.SubstituteLive(ctx, model.LiveSubstitution{
				OutExternalID: "101", InExternalID: "103", Minute: minute,
			}, r)
			*minute = 90

			Convey("Then the outcome keeps its own copies", func() {
				So(err, ShouldBeNil)
				So(*out.Event.Minute, ShouldEqual, 64)
				So(*out.Substitution.Minute, ShouldEqual, 64)
				So(out.Event.Minute, ShouldNotPointTo, out.Substitution.Minute)
			})
		})

		Convey("When neither id resolves", func() {
			_, err := c.SubstituteLive(ctx, model.LiveSubstitution{OutExternalID: "1", InExternalID: "2"}, r)

			Convey("Then the notification is dropped", func() {
				So(err, ShouldWrap, substitution.ErrUnresolved)
			})
		})
	})
}

func TestRemaining(t *testing.T) {
	Convey("Given recorded substitutions for two teams", t, func() {
		subs := []model.Substitution{{Team: "ARS"}, {Team: "ARS"}, {Team: "CHE"}}

		Convey("Then the default allowance is reduced per team", func() {
			c := substitution.New()
			So(c.Limit(), ShouldEqual, substitution.DefaultLimit)
			So(c.Remaining("ARS", subs), ShouldEqual, 3)
			So(c.Remaining("CHE", subs), ShouldEqual, 4)
			So(c.Remaining("LIV", subs), ShouldEqual, 5)
		})

		Convey("Then an exhausted allowance reports zero", func() {
			c := substitution.New(substitution.WithLimit(1))
			So(c.Remaining("ARS", subs), ShouldEqual, 0)
		})
	})
}
