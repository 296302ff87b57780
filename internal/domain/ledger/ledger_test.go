package ledger_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/okian/matchpool/internal/domain/ledger"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

const eps = 1e-9

func pool() []model.Player {
	return []model.Player{
		{ID: "x", Name: "Saka", Team: "ARS"},
		{ID: "y", Name: "Rice", Team: "ARS"},
		{ID: "z", Name: "Martinelli", Team: "ARS"},
		{ID: "u", Name: "Unowned", Team: "CHE"},
	}
}

func mustRoster(participants ...model.Participant) *roster.Roster {
	r, err := roster.New(participants, pool(), nil)
	if err != nil {
		panic(err)
	}
	return r
}

func event(player model.PlayerID, t model.EventType) model.GameEvent {
	return model.GameEvent{ID: "e-" + string(player), PlayerID: player, Type: t}
}

func TestLedgerScenarios(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()

	Convey("Scenario A: goal +5, P1 owns X, P2 does not", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"x"}},
			model.Participant{ID: "p2"},
		)
		wagers := []model.Wager{{EventType: model.EventGoal, Amount: 5}}

		s, err := l.Settle(ctx, event("x", model.EventGoal), wagers, r)

		Convey("Then P1 gains 5 and P2 loses 5", func() {
			So(err, ShouldBeNil)
			So(r.Balances()["p1"], ShouldAlmostEqual, 5)
			So(r.Balances()["p2"], ShouldAlmostEqual, -5)
			So(s.Balanced(eps), ShouldBeTrue)
		})

		Convey("When the settlement is reversed", func() {
			_, err := l.Reverse(ctx, s, r)

			Convey("Then both balances return to zero", func() {
				So(err, ShouldBeNil)
				So(r.Balances()["p1"], ShouldAlmostEqual, 0)
				So(r.Balances()["p2"], ShouldAlmostEqual, 0)
			})
		})
	})

	Convey("Scenario B: red card -10, P1 owns Y, P2 and P3 do not", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"y"}},
			model.Participant{ID: "p2"},
			model.Participant{ID: "p3"},
		)
		wagers := []model.Wager{{EventType: model.EventRedCard, Amount: -10}}

		s, err := l.Settle(ctx, event("y", model.EventRedCard), wagers, r)

		Convey("Then P1 pays 20 and each other participant receives 10", func() {
			So(err, ShouldBeNil)
			b := r.Balances()
			So(b["p1"], ShouldAlmostEqual, -20)
			So(b["p2"], ShouldAlmostEqual, 10)
			So(b["p3"], ShouldAlmostEqual, 10)
			So(s.Sum(), ShouldAlmostEqual, 0)
			So(s.With, ShouldResemble, []model.ParticipantID{"p1"})
			So(s.Without, ShouldResemble, []model.ParticipantID{"p2", "p3"})
		})
	})

	Convey("Scenario C: a goal by a substituted-off player still credits the owner", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"x"}},
			model.Participant{ID: "p2"},
		)
		So(r.Swap("p1", "x", "z"), ShouldBeNil)
		wagers := []model.Wager{{EventType: model.EventGoal, Amount: 3}}

		_, err := l.Settle(ctx, event("x", model.EventGoal), wagers, r)

		So(err, ShouldBeNil)
		So(r.Balances()["p1"], ShouldAlmostEqual, 3)
		So(r.Balances()["p2"], ShouldAlmostEqual, -3)
	})
}

func TestLedgerZeroSum(t *testing.T) {
	Convey("Given every partition size from 1x1 to 6x6", t, func() {
		amounts := []float64{0, 1, 2.5, 7, -1, -3.3, -10, 1e6 / 3}

		Convey("Then every settlement is zero-sum", func() {
			for w := 1; w <= 6; w++ {
				for wo := 1; wo <= 6; wo++ {
					var with, without []model.ParticipantID
					for i := 0; i < w; i++ {
						with = append(with, model.ParticipantID(fmt.Sprintf("w%d", i)))
					}
					for i := 0; i < wo; i++ {
						without = append(without, model.ParticipantID(fmt.Sprintf("o%d", i)))
					}
					for _, amt := range amounts {
						s, err := ledger.Compute(amt, with, without)
						So(err, ShouldBeNil)
						So(math.Abs(s.Sum()), ShouldBeLessThanOrEqualTo, eps*math.Max(1, s.Volume()))
						So(len(s.Deltas), ShouldEqual, w+wo)
					}
				}
			}
		})

		Convey("Then positive bets take exactly the amount from each non-owner", func() {
			s, _ := ledger.Compute(4, []model.ParticipantID{"a", "b", "c"}, []model.ParticipantID{"d", "e"})
			So(s.Deltas["d"], ShouldAlmostEqual, -4)
			So(s.Deltas["a"], ShouldAlmostEqual, 8.0/3)
		})

		Convey("Then negative bets pay each non-owner the amount times the owner count", func() {
			s, _ := ledger.Compute(-2, []model.ParticipantID{"a", "b", "c"}, []model.ParticipantID{"d"})
			So(s.Deltas["d"], ShouldAlmostEqual, 6)
			So(s.Deltas["a"], ShouldAlmostEqual, -2)
		})
	})
}

func TestLedgerNoOps(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()

	Convey("Given a two participant roster", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"x"}},
			model.Participant{ID: "p2", Active: []model.PlayerID{"y"}},
		)
		wagers := []model.Wager{{EventType: model.EventGoal, Amount: 5}}
		untouched := func() {
			So(r.Balances(), ShouldResemble, map[model.ParticipantID]float64{"p1": 0, "p2": 0})
		}

		Convey("When no wager matches the event type", func() {
			_, err := l.Settle(ctx, event("x", model.EventYellowCard), wagers, r)
			So(err, ShouldWrap, ledger.ErrNoWager)
			untouched()
		})

		Convey("When nobody owns the player", func() {
			_, err := l.Settle(ctx, event("u", model.EventGoal), wagers, r)
			So(err, ShouldWrap, ledger.ErrEmptyGroup)
			untouched()
		})

		Convey("When the player is unknown", func() {
			_, err := l.Settle(ctx, event("ghost", model.EventGoal), wagers, r)
			So(err, ShouldWrap, ledger.ErrUnknownPlayer)
			untouched()
		})

		Convey("When the event is a timeline entry", func() {
			ev := event("x", model.EventCustom)
			ev.TimelineOnly = true
			_, err := l.Settle(ctx, ev, []model.Wager{{EventType: model.EventCustom, Amount: 1}}, r)
			So(err, ShouldWrap, ledger.ErrNotWagering)
			untouched()
		})

		Convey("When the amount is not finite", func() {
			_, err := l.Settle(ctx, event("x", model.EventGoal), []model.Wager{{EventType: model.EventGoal, Amount: math.NaN()}}, r)
			So(err, ShouldWrap, ledger.ErrInvalidAmount)
			untouched()
		})
	})

	Convey("Given a single participant who owns the player", t, func() {
		r := mustRoster(model.Participant{ID: "p1", Active: []model.PlayerID{"x"}})
		_, err := l.Settle(ctx, event("x", model.EventGoal), []model.Wager{{EventType: model.EventGoal, Amount: 1}}, r)

		Convey("Then there is nobody to settle against", func() {
			So(err, ShouldWrap, ledger.ErrEmptyGroup)
			So(r.Balances()["p1"], ShouldEqual, 0)
		})
	})
}

func TestLedgerRecordedPartition(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()

	Convey("Given an event settled before its player changed hands", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"x"}},
			model.Participant{ID: "p2", Active: []model.PlayerID{"y"}},
			model.Participant{ID: "p3"},
		)
		wagers := []model.Wager{{EventType: model.EventGoal, Amount: 6}}
		ev := event("y", model.EventGoal)
		s, err := l.Settle(ctx, ev, wagers, r)
		So(err, ShouldBeNil)
		ev.Settlement = &s
		before := r.Balances()

		So(r.Swap("p1", "x", "u"), ShouldBeNil)

		Convey("When reversing with the record", func() {
			_, err := l.ReverseSettle(ctx, ev, wagers, r)

			Convey("Then balances return exactly to zero", func() {
				So(err, ShouldBeNil)
				for id, b := range r.Balances() {
					So(b, ShouldAlmostEqual, before[id]-s.Deltas[id])
					So(b, ShouldAlmostEqual, 0)
				}
			})
		})

		Convey("When re-settling with the recorded partition after a reset", func() {
			r.ResetBalances()
			_, err := l.SettleRecorded(ctx, ev, wagers, r)

			Convey("Then the original deltas are reproduced", func() {
				So(err, ShouldBeNil)
				for id, b := range r.Balances() {
					So(b, ShouldAlmostEqual, before[id])
				}
			})
		})
	})

	Convey("Given an event for a player who was unowned when it happened", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"x"}},
			model.Participant{ID: "p2"},
		)
		wagers := []model.Wager{{EventType: model.EventGoal, Amount: 2}}
		_, err := l.Settle(ctx, event("z", model.EventGoal), wagers, r)
		So(err, ShouldWrap, ledger.ErrEmptyGroup)

		Convey("When the player is later substituted on", func() {
			So(r.Swap("p1", "x", "z"), ShouldBeNil)

			Convey("Then settling against the current roster now pays out", func() {
				_, err := l.Settle(ctx, event("z", model.EventGoal), wagers, r)
				So(err, ShouldBeNil)
				So(r.Balances()["p1"], ShouldAlmostEqual, 2)
			})
		})
	})

	Convey("Given an event without a settlement record", t, func() {
		r := mustRoster(
			model.Participant{ID: "p1", Active: []model.PlayerID{"x"}},
			model.Participant{ID: "p2"},
		)
		wagers := []model.Wager{{EventType: model.EventGoal, Amount: 1}}
		ev := event("x", model.EventGoal)
		_, err := l.Settle(ctx, ev, wagers, r)
		So(err, ShouldBeNil)

		Convey("Then ReverseSettle recomputes the current partition", func() {
			_, err := l.ReverseSettle(ctx, ev, wagers, r)
			So(err, ShouldBeNil)
			So(r.Balances()["p1"], ShouldAlmostEqual, 0)
			So(r.Balances()["p2"], ShouldAlmostEqual, 0)
		})
	})

	Convey("Given a record naming a participant that no longer exists", t, func() {
		r := mustRoster(model.Participant{ID: "p1"})
		_, err := l.Reverse(ctx, model.Settlement{Deltas: map[model.ParticipantID]float64{"gone": 1}}, r)
		So(err, ShouldWrap, roster.ErrUnknownParticipant)
	})
}
