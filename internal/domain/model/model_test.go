package model_test

import (
	"testing"

	model "github.com/okian/matchpool/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseEventType(t *testing.T) {
	Convey("Given event type spellings", t, func() {
		cases := map[string]model.EventType{
			"goal":           model.EventGoal,
			"red_card":       model.EventRedCard,
			"red-card":       model.EventRedCard,
			"redCard":        model.EventRedCard,
			"Red Card":       model.EventRedCard,
			"YELLOW_CARD":    model.EventYellowCard,
			" penaltyMissed": model.EventPenaltyMissed,
			"own goal":       model.EventOwnGoal,
		}

		Convey("Then each maps to the canonical type", func() {
			for in, want := range cases {
				got, err := model.ParseEventType(in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then unknown types are rejected", func() {
			_, err := model.ParseEventType("corner")
			So(err, ShouldNotBeNil)
			_, err = model.ParseEventType("")
			So(err, ShouldNotBeNil)
		})

		Convey("Then every listed type is valid", func() {
			for _, et := range model.EventTypes() {
				So(et.Valid(), ShouldBeTrue)
			}
		})
	})
}

func TestSettlement(t *testing.T) {
	Convey("Given a recorded settlement", t, func() {
		s := model.Settlement{
			Amount:  -10,
			With:    []model.ParticipantID{"p1"},
			Without: []model.ParticipantID{"p2", "p3"},
			Deltas:  map[model.ParticipantID]float64{"p1": -20, "p2": 10, "p3": 10},
		}

		Convey("Then it is zero-sum and reports the moved volume", func() {
			So(s.Sum(), ShouldEqual, 0)
			So(s.Balanced(1e-9), ShouldBeTrue)
			So(s.Volume(), ShouldEqual, 20)
		})

		Convey("When a delta is skewed", func() {
			s.Deltas["p3"] = 10.5

			Convey("Then it is no longer balanced", func() {
				So(s.Balanced(1e-9), ShouldBeFalse)
			})
		})
	})
}

func TestParticipantOwnership(t *testing.T) {
	Convey("Given a participant with an active and a substituted player", t, func() {
		p := model.Participant{
			ID:          "p1",
			Active:      []model.PlayerID{"z"},
			Substituted: []model.PlayerID{"x"},
		}

		Convey("Then both players are owned but only one is active", func() {
			So(p.Owns("x"), ShouldBeTrue)
			So(p.Owns("z"), ShouldBeTrue)
			So(p.HasActive("x"), ShouldBeFalse)
			So(p.HasActive("z"), ShouldBeTrue)
			So(p.Owns("y"), ShouldBeFalse)
		})

		Convey("Then a clone does not alias the player sets", func() {
			c := p.Clone()
			c.Active[0] = "other"
			So(p.Active[0], ShouldEqual, model.PlayerID("z"))
		})
	})

	Convey("Given a substitution label", t, func() {
		So(model.SubstitutionLabel("Saka", "Martinelli"), ShouldEqual, "Substitution: Saka → Martinelli")
	})
}
