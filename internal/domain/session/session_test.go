package session_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/matchpool/internal/domain/ledger"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/internal/domain/session"
	"github.com/okian/matchpool/internal/domain/substitution"
	. "github.com/smartystreets/goconvey/convey"
)

func setup() session.Setup {
	return session.Setup{
		ID:      "s1",
		MatchID: "m1",
		Participants: []model.Participant{
			{ID: "p1", Name: "Ana", Active: []model.PlayerID{"x"}},
			{ID: "p2", Name: "Ben", Active: []model.PlayerID{"y"}},
			{ID: "p3", Name: "Cas"},
		},
		Wagers: []model.Wager{
			{EventType: model.EventGoal, Amount: 5},
			{EventType: model.EventRedCard, Amount: -10},
		},
		Available: []model.Player{
			{ID: "x", Name: "Saka", Team: "ARS", ExternalID: "101"},
			{ID: "y", Name: "Rice", Team: "ARS", ExternalID: "102"},
			{ID: "z", Name: "Martinelli", Team: "ARS", ExternalID: "103"},
			{ID: "w", Name: "Palmer", Team: "CHE", ExternalID: "201"},
		},
		Selected: []model.PlayerID{"x", "y"},
	}
}

func newSession() (*session.Session, *[]session.Change) {
	s, err := session.New(setup())
	if err != nil {
		panic(err)
	}
	var changes []session.Change
	s.Subscribe(func(c session.Change) { changes = append(changes, c) })
	return s, &changes
}

func sum(b map[model.ParticipantID]float64) float64 {
	var t float64
	for _, v := range b {
		t += v
	}
	return t
}

func TestNew(t *testing.T) {
	Convey("Given session setups", t, func() {
		Convey("When the setup is valid", func() {
			s, err := session.New(setup())

			Convey("Then balances start at zero and nothing can be undone", func() {
				So(err, ShouldBeNil)
				So(s.ID(), ShouldEqual, "s1")
				So(s.MatchID(), ShouldEqual, "m1")
				So(s.Balances(), ShouldResemble, map[model.ParticipantID]float64{"p1": 0, "p2": 0, "p3": 0})
				So(s.CanUndo(), ShouldBeFalse)
				So(s.Events(), ShouldBeEmpty)
			})
		})

		Convey("When ids are omitted", func() {
			in := setup()
			in.ID = ""
			in.Participants = append(in.Participants, model.Participant{Name: "Dee"})
			s, err := session.New(in)

			Convey("Then they are generated", func() {
				So(err, ShouldBeNil)
				So(s.ID(), ShouldNotBeEmpty)
				So(s.Balances(), ShouldHaveLength, 4)
			})
		})

		Convey("When there are no participants", func() {
			in := setup()
			in.Participants = nil
			_, err := session.New(in)
			So(err, ShouldWrap, session.ErrInvalidSetup)
		})

		Convey("When two wagers share an event type", func() {
			in := setup()
			in.Wagers = append(in.Wagers, model.Wager{EventType: model.EventGoal, Amount: 1})
			_, err := session.New(in)
			So(err, ShouldWrap, session.ErrInvalidSetup)
		})

		Convey("When a wager has an unknown event type", func() {
			in := setup()
			in.Wagers = []model.Wager{{EventType: "corner", Amount: 1}}
			_, err := session.New(in)
			So(err, ShouldWrap, session.ErrInvalidEventType)
		})

		Convey("When a player is active for two participants", func() {
			in := setup()
			in.Participants[2].Active = []model.PlayerID{"x"}
			_, err := session.New(in)
			So(err, ShouldWrap, session.ErrInvalidSetup)
		})
	})
}

func TestSettleAndUndo(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh session", t, func() {
		s, changes := newSession()

		Convey("When a goal by x is settled", func() {
			ev, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal, Minute: model.Minute(12)})

			Convey("Then p1 is credited by the others and one notification fires", func() {
				So(err, ShouldBeNil)
				So(ev.Settlement, ShouldNotBeNil)
				b := s.Balances()
				So(b["p1"], ShouldAlmostEqual, 10)
				So(b["p2"], ShouldAlmostEqual, -5)
				So(b["p3"], ShouldAlmostEqual, -5)
				So(*changes, ShouldHaveLength, 1)
				So((*changes)[0].Kind, ShouldEqual, session.ChangeSettled)
				So((*changes)[0].EventID, ShouldEqual, ev.ID)
				So(s.CanUndo(), ShouldBeTrue)
			})

			Convey("And it is undone", func() {
				undone, err := s.Undo(ctx)

				Convey("Then every balance is back to zero and the event is gone", func() {
					So(err, ShouldBeNil)
					So(undone.ID, ShouldEqual, ev.ID)
					for _, b := range s.Balances() {
						So(b, ShouldAlmostEqual, 0)
					}
					So(s.Events(), ShouldBeEmpty)
					So(*changes, ShouldHaveLength, 2)
					So((*changes)[1].Kind, ShouldEqual, session.ChangeUndone)
				})

				Convey("Then a second undo is refused without notifying", func() {
					_, err := s.Undo(ctx)
					So(err, ShouldWrap, session.ErrNothingToUndo)
					So(*changes, ShouldHaveLength, 2)
				})
			})
		})

		Convey("When the caller reuses its minute after settling", func() {
			minute := model.Minute(30)
			_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal, Minute: minute})
			So(err, ShouldBeNil)
			*minute = 88

			Convey("Then the recorded event keeps the original minute", func() {
				So(*s.Events()[0].Minute, ShouldEqual, 30)
			})
		})

		Convey("When an event has no matching wager", func() {
			_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventAssist})

			Convey("Then nothing is appended and nobody is notified", func() {
				So(err, ShouldWrap, ledger.ErrNoWager)
				So(s.Events(), ShouldBeEmpty)
				So(*changes, ShouldBeEmpty)
				So(s.Version(), ShouldEqual, 0)
			})
		})

		Convey("When nobody owns the player", func() {
			_, err := s.Settle(ctx, session.EventInput{PlayerID: "w", Type: model.EventGoal})
			So(err, ShouldWrap, ledger.ErrEmptyGroup)
			So(*changes, ShouldBeEmpty)
		})

		Convey("When the event type is unknown", func() {
			_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: "corner"})
			So(err, ShouldWrap, session.ErrInvalidEventType)
		})

		Convey("When nothing was settled yet", func() {
			_, err := s.Undo(ctx)
			So(err, ShouldWrap, session.ErrNothingToUndo)
		})
	})

	Convey("Scenario B through the session: red card -10 on y", t, func() {
		s, _ := newSession()
		_, err := s.Settle(ctx, session.EventInput{PlayerID: "y", Type: model.EventRedCard})
		So(err, ShouldBeNil)
		b := s.Balances()
		So(b["p2"], ShouldAlmostEqual, -20)
		So(b["p1"], ShouldAlmostEqual, 10)
		So(b["p3"], ShouldAlmostEqual, 10)
	})
}

func TestSubstitutions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session where a goal was just settled", t, func() {
		s, changes := newSession()
		_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})
		So(err, ShouldBeNil)

		Convey("When p1's x is substituted for z", func() {
			out, err := s.Substitute(ctx, substitution.Request{Off: "x", On: "z", Minute: model.Minute(55)})

			Convey("Then the timeline gains a non-wagering entry and undo is no longer possible", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, substitution.KindApplied)
				events := s.Events()
				So(events, ShouldHaveLength, 2)
				So(events[1].TimelineOnly, ShouldBeTrue)
				So(events[1].Label, ShouldEqual, "Substitution: Saka → Martinelli")
				So(s.CanUndo(), ShouldBeFalse)
				So(*changes, ShouldHaveLength, 2)
				So(s.IsPlayerActive("x"), ShouldBeFalse)
				So(s.IsPlayerActive("z"), ShouldBeTrue)
				So(s.RemainingSubstitutions("ARS"), ShouldEqual, 4)
			})

			Convey("Then a later goal by x still credits p1", func() {
				_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})
				So(err, ShouldBeNil)
				So(s.Balances()["p1"], ShouldAlmostEqual, 20)
				owner, ok := s.OwnerOf("x")
				So(ok, ShouldBeTrue)
				So(owner, ShouldEqual, model.ParticipantID("p1"))
			})

			Convey("Then the player view reflects the change", func() {
				v, ok := s.Player("x")
				So(ok, ShouldBeTrue)
				So(v.Owner, ShouldEqual, model.ParticipantID("p1"))
				So(v.Active, ShouldBeFalse)
				So(v.Player.Status, ShouldEqual, model.StatusSubstitutedOff)

				active, err := s.ActivePlayers("p1")
				So(err, ShouldBeNil)
				So(active[0].ID, ShouldEqual, model.PlayerID("z"))
			})
		})

		Convey("When a substitution is rejected", func() {
			_, err := s.Substitute(ctx, substitution.Request{Off: "x", On: "y"})

			Convey("Then nothing changes and nobody is notified", func() {
				So(err, ShouldWrap, substitution.ErrAlreadyActive)
				So(s.Events(), ShouldHaveLength, 1)
				So(*changes, ShouldHaveLength, 1)
				So(s.CanUndo(), ShouldBeTrue)
			})
		})

		Convey("When the live feed reports x off and z on", func() {
			out, err := s.SubstituteLive(ctx, model.LiveSubstitution{OutExternalID: "101", InExternalID: "103", Minute: model.Minute(60)})

			Convey("Then the roster changes through the same pipeline", func() {
				So(err, ShouldBeNil)
				So(out.Substitution.Source, ShouldEqual, model.SourceLive)
				So(s.Substitutions(), ShouldHaveLength, 1)
				So(s.IsPlayerActive("z"), ShouldBeTrue)
			})
		})

		Convey("When the live feed reports unknown players", func() {
			_, err := s.SubstituteLive(ctx, model.LiveSubstitution{OutExternalID: "9", InExternalID: "8"})
			So(err, ShouldWrap, substitution.ErrUnresolved)
			So(*changes, ShouldHaveLength, 1)
		})

		Convey("When the live feed reports a goal", func() {
			ev, err := s.ScoreLive(ctx, model.LiveScoring{EventType: model.EventGoal, PlayerExternalID: "102", Minute: model.Minute(70)})

			Convey("Then it settles against the resolved player", func() {
				So(err, ShouldBeNil)
				So(ev.PlayerID, ShouldEqual, model.PlayerID("y"))
				So(*ev.Minute, ShouldEqual, 70)
				So(s.Balances()["p2"], ShouldAlmostEqual, 5)
			})
		})

		Convey("When the live feed reports a goal by an unknown player", func() {
			_, err := s.ScoreLive(ctx, model.LiveScoring{EventType: model.EventGoal, PlayerExternalID: "999"})
			So(err, ShouldWrap, session.ErrUnresolvedPlayer)
			So(*changes, ShouldHaveLength, 1)
		})
	})
}

func TestRecalculateAndWagers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session with interleaved events and substitutions", t, func() {
		s, changes := newSession()
		_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})
		So(err, ShouldBeNil)
		_, err = s.Substitute(ctx, substitution.Request{Off: "x", On: "z"})
		So(err, ShouldBeNil)
		_, err = s.Settle(ctx, session.EventInput{PlayerID: "y", Type: model.EventRedCard})
		So(err, ShouldBeNil)
		_, err = s.Settle(ctx, session.EventInput{PlayerID: "z", Type: model.EventGoal})
		So(err, ShouldBeNil)
		incremental := s.Balances()

		Convey("When recalculating", func() {
			rep, err := s.Recalculate(ctx)

			Convey("Then balances equal the incremental ones", func() {
				So(err, ShouldBeNil)
				So(rep.Settled, ShouldEqual, 3)
				So(rep.Skipped, ShouldEqual, 1)
				for id, b := range s.Balances() {
					So(b, ShouldAlmostEqual, incremental[id])
				}
				So((*changes)[len(*changes)-1].Kind, ShouldEqual, session.ChangeRecalculated)
				So(s.CanUndo(), ShouldBeFalse)
			})
		})

		Convey("When the goal wager is raised and balances are recalculated", func() {
			So(s.SetWager(ctx, model.EventGoal, 10), ShouldBeNil)
			_, err := s.Recalculate(ctx)

			Convey("Then past goals are settled at the new amount", func() {
				So(err, ShouldBeNil)
				// two goals at +20 each and +10 from p2's red card
				So(s.Balances()["p1"], ShouldAlmostEqual, 50)
				So(math.Abs(sum(s.Balances())), ShouldBeLessThan, 1e-9)
			})
		})

		Convey("When a wager is removed", func() {
			So(s.RemoveWager(ctx, model.EventRedCard), ShouldBeNil)

			Convey("Then it is gone and removing it again fails", func() {
				So(s.Wagers(), ShouldHaveLength, 1)
				So(s.RemoveWager(ctx, model.EventRedCard), ShouldWrap, session.ErrNoSuchWager)
			})
		})

		Convey("When a wager is invalid", func() {
			So(s.SetWager(ctx, model.EventGoal, math.Inf(1)), ShouldWrap, session.ErrInvalidAmount)
			So(s.SetWager(ctx, "corner", 1), ShouldWrap, session.ErrInvalidEventType)
		})
	})

	Convey("Given the current replay policy", t, func() {
		s, err := session.New(setup(), session.WithReplayPolicy(replay.PolicyCurrent))
		So(err, ShouldBeNil)
		_, err = s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})
		So(err, ShouldBeNil)

		rep, err := s.Recalculate(ctx)
		So(err, ShouldBeNil)
		So(rep.Policy, ShouldEqual, replay.PolicyCurrent)
		So(s.Balances()["p1"], ShouldAlmostEqual, 10)
	})
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session with history", t, func() {
		s, _ := newSession()
		_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})
		So(err, ShouldBeNil)
		_, err = s.Substitute(ctx, substitution.Request{Off: "x", On: "z"})
		So(err, ShouldBeNil)
		_, err = s.Settle(ctx, session.EventInput{PlayerID: "y", Type: model.EventGoal})
		So(err, ShouldBeNil)

		snap := s.Snapshot()

		Convey("When a session is rebuilt from the snapshot", func() {
			restored, err := session.FromSnapshot(snap)

			Convey("Then state matches and the undo slot is cleared", func() {
				So(err, ShouldBeNil)
				So(restored.ID(), ShouldEqual, s.ID())
				So(restored.Balances(), ShouldResemble, s.Balances())
				So(restored.Events(), ShouldResemble, s.Events())
				So(restored.Substitutions(), ShouldResemble, s.Substitutions())
				So(restored.Version(), ShouldEqual, s.Version())
				So(restored.CanUndo(), ShouldBeFalse)
				So(restored.IsPlayerActive("z"), ShouldBeTrue)
			})
		})

		Convey("When the snapshot is mutated", func() {
			snap.Events[0].Settlement.Deltas["p1"] = 1000

			Convey("Then the session is not affected", func() {
				So(s.Events()[0].Settlement.Deltas["p1"], ShouldAlmostEqual, 10)
			})
		})

		Convey("When restoring an older snapshot into the live session", func() {
			older := s.Snapshot()
			_, err := s.Settle(ctx, session.EventInput{PlayerID: "z", Type: model.EventGoal})
			So(err, ShouldBeNil)
			So(s.Restore(ctx, older), ShouldBeNil)

			Convey("Then state rolls back and the version still moves forward", func() {
				So(s.Events(), ShouldHaveLength, 3)
				So(s.Version(), ShouldBeGreaterThan, older.Version+1)
			})
		})

		Convey("When restoring another session's snapshot", func() {
			other := snap
			other.ID = "elsewhere"
			So(s.Restore(ctx, other), ShouldWrap, session.ErrSessionMismatch)
		})

		Convey("When restoring a snapshot for a different match", func() {
			other := snap
			other.MatchID = "m2"
			So(s.Restore(ctx, other), ShouldWrap, session.ErrSessionMismatch)
			So(s.MatchID(), ShouldEqual, "m1")
		})

		Convey("When the snapshot is corrupt", func() {
			snap.Participants[1].Active = []model.PlayerID{"z"}
			_, err := session.FromSnapshot(snap)
			So(err, ShouldWrap, session.ErrInvalidSetup)
		})

		Convey("When a substituted player is active for someone else in the snapshot", func() {
			snap.Participants[1].Active = append(snap.Participants[1].Active, "x")
			_, err := session.FromSnapshot(snap)
			So(err, ShouldWrap, session.ErrInvalidSetup)
		})
	})
}

func TestStandings(t *testing.T) {
	Convey("Given a settled red card", t, func() {
		s, _ := newSession()
		_, err := s.Settle(context.Background(), session.EventInput{PlayerID: "y", Type: model.EventRedCard})
		So(err, ShouldBeNil)

		Convey("Then standings are ranked by balance then id", func() {
			rows := s.Standings()
			So(rows, ShouldHaveLength, 3)
			So(rows[0].ParticipantID, ShouldEqual, model.ParticipantID("p1"))
			So(rows[0].Name, ShouldEqual, "Ana")
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[1].ParticipantID, ShouldEqual, model.ParticipantID("p3"))
			So(rows[1].Rank, ShouldEqual, 1)
			So(rows[2].ParticipantID, ShouldEqual, model.ParticipantID("p2"))
			So(rows[2].Rank, ShouldEqual, 3)
		})

		Convey("Then unknown participants are reported", func() {
			_, err := s.ActivePlayers("ghost")
			So(err, ShouldWrap, session.ErrUnknownParticipant)
		})
	})
}

func TestObservers(t *testing.T) {
	ctx := context.Background()

	Convey("Given two observers", t, func() {
		s, err := session.New(setup())
		So(err, ShouldBeNil)
		var a, b atomic.Int64
		s.Subscribe(func(session.Change) { a.Add(1) })
		unsubscribe := s.Subscribe(func(session.Change) { b.Add(1) })

		Convey("When one unsubscribes between mutations", func() {
			_, _ = s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})
			unsubscribe()
			_, _ = s.Settle(ctx, session.EventInput{PlayerID: "y", Type: model.EventGoal})

			Convey("Then only the remaining observer hears the second change", func() {
				So(a.Load(), ShouldEqual, 2)
				So(b.Load(), ShouldEqual, 1)
			})
		})

		Convey("When an observer reads the session from its callback", func() {
			var seen uint64
			s.Subscribe(func(c session.Change) { seen = s.Version() })
			_, err := s.Settle(ctx, session.EventInput{PlayerID: "x", Type: model.EventGoal})

			Convey("Then it does not deadlock and sees the new version", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldEqual, 1)
			})
		})
	})
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()

	Convey("Given many goroutines settling and undoing at once", t, func() {
		s, err := session.New(setup())
		So(err, ShouldBeNil)
		var notified atomic.Int64
		s.Subscribe(func(session.Change) { notified.Add(1) })

		var ok atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				player := model.PlayerID("x")
				if i%2 == 0 {
					player = "y"
				}
				if _, err := s.Settle(ctx, session.EventInput{PlayerID: player, Type: model.EventGoal}); err == nil {
					ok.Add(1)
				}
				if i%8 == 0 {
					if _, err := s.Undo(ctx); err == nil {
						ok.Add(1)
					}
				}
			}(i)
		}
		wg.Wait()

		Convey("Then every successful mutation notified exactly once and balances stay zero-sum", func() {
			So(notified.Load(), ShouldEqual, ok.Load())
			So(s.Version(), ShouldEqual, uint64(ok.Load()))
			So(math.Abs(sum(s.Balances())), ShouldBeLessThan, 1e-6)
		})
	})
}
