package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cricketLog() []ScoreEvent {
	events := []ScoreEvent{openingBall(1, 1)}
	for i, r := range []int{4, 0, 6, 2, 1, 3} {
		events = append(events, delivery(i+2, r))
	}
	events = append(events,
		withBall(delivery(8, 0), func(b *Ball) {
			b.BowlerID = "b2"
			b.Dismissal = &Dismissal{Type: DismissalCaught, FielderID: "f1"}
		}),
		withBall(delivery(9, 0), func(b *Ball) { b.Extras = &Extras{Type: ExtraWide, Runs: 1} }),
	)
	events[7].Type = EvtWicket
	events[8].Type = EvtExtra
	return events
}

func TestReduce_IsDeterministic(t *testing.T) {
	events := cricketLog()

	a := Reduce(liveMatch(t, SportCricket), events)
	b := Reduce(liveMatch(t, SportCricket), events)

	assert.Equal(t, a, b)
}

func TestRecalculate_EqualsIncrementalBuild(t *testing.T) {
	incremental := liveMatch(t, SportCricket)
	for _, e := range cricketLog() {
		incremental = Apply(incremental, e)
	}

	recomputed := Recalculate(incremental)

	assert.Equal(t, incremental, recomputed)
}

func TestRecalculate_SortsByTimestamp(t *testing.T) {
	m := liveMatch(t, SportFootball)
	m = Apply(m, ScoreEvent{ID: "late", Timestamp: at(5), Type: EvtPeriodEnd, Payload: Period{Clock: "90:00"}})
	m = Apply(m, ScoreEvent{ID: "early", Timestamp: at(1), Type: EvtPeriodStart, Payload: Period{Clock: "00:00"}})
	require.False(t, m.LiveState.Paused, "applied in arrival order the match looks running")

	got := Recalculate(m)

	assert.True(t, got.LiveState.Paused)
	assert.Equal(t, "90:00", got.LiveState.Clock)
	assert.Equal(t, "late", got.Events[0].ID)
	assert.Equal(t, "early", got.Events[1].ID)
}

func TestRecalculate_Idempotent(t *testing.T) {
	m := Reduce(liveMatch(t, SportCricket), cricketLog())
	m.Home.Score = 999 // drift

	once := Recalculate(m)
	twice := Recalculate(once)

	assert.Equal(t, once, twice)
	assert.NotEqual(t, 999, once.Home.Score)
}

func TestRecalculate_KeepsCompletedStatus(t *testing.T) {
	m := Reduce(liveMatch(t, SportCricket), cricketLog())
	done, err := End(m, at(100))
	require.NoError(t, err)

	got := Recalculate(done)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, done.Home.Score, got.Home.Score)
	assert.Equal(t, done.WinnerID, got.WinnerID)
}

func TestUndo_MatchesReplayWithoutNewestEvent(t *testing.T) {
	e1 := openingBall(1, 1)
	e2 := delivery(2, 4)
	e3 := withBall(delivery(3, 0), func(b *Ball) { b.Dismissal = &Dismissal{Type: DismissalBowled} })
	e3.Type = EvtWicket

	full := Reduce(liveMatch(t, SportCricket), []ScoreEvent{e1, e2, e3})
	require.Equal(t, []string{"e3", "e2", "e1"}, ids(full.Events))

	undone := Undo(full)
	direct := Reduce(liveMatch(t, SportCricket), []ScoreEvent{e1, e2})

	assert.Equal(t, direct, undone)
	assert.Equal(t, undone, Recalculate(undone))
	assert.Equal(t, 0, undone.Home.Wickets)
}

func TestUndo_EmptyLog(t *testing.T) {
	m := liveMatch(t, SportCricket)
	assert.Equal(t, m, Undo(m))
}

func TestChronological_StableOnTies(t *testing.T) {
	a := ScoreEvent{ID: "a", Timestamp: at(1)}
	b := ScoreEvent{ID: "b", Timestamp: at(1)}
	c := ScoreEvent{ID: "c", Timestamp: at(0)}

	got := Chronological([]ScoreEvent{b, a, c}) // newest first: applied c, a, b

	assert.Equal(t, []string{"c", "a", "b"}, ids(got))
}

func ids(events []ScoreEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestUndo_CompletedMatchRederivesWinner(t *testing.T) {
	m := liveMatch(t, SportFootball)
	m = Apply(m, ScoreEvent{ID: "g1", Timestamp: at(1), Type: EvtGoal, TeamID: "home", Payload: Goal{ScorerID: "p9"}})
	m, err := End(m, at(2))
	require.NoError(t, err)
	require.Equal(t, "home", m.WinnerID)

	got := Undo(m)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 0, got.Home.Score)
	assert.Empty(t, got.WinnerID)
	assert.Equal(t, m.EndedAt, got.EndedAt)
}

func TestRecalculate_CompletedMatchWinnerFollowsScores(t *testing.T) {
	m := liveMatch(t, SportFootball)
	m = Apply(m, ScoreEvent{ID: "g1", Timestamp: at(1), Type: EvtGoal, TeamID: "away"})
	m, err := End(m, at(2))
	require.NoError(t, err)
	m.WinnerID = "home" // drifted cache

	got := Recalculate(m)

	assert.Equal(t, "away", got.WinnerID)
	assert.Equal(t, got, Recalculate(got))
}
