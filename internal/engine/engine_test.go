package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := liveMatch(t, SportFootball)
	first := Apply(m, ScoreEvent{ID: "g1", Timestamp: at(1), Type: EvtGoal, TeamID: "home", Payload: Goal{ScorerID: "p9"}})

	second := Apply(first, ScoreEvent{ID: "g2", Timestamp: at(2), Type: EvtGoal, TeamID: "home", Payload: Goal{ScorerID: "p9"}})

	assert.Equal(t, 1, first.Home.Score)
	assert.Equal(t, 1, first.Home.Players["p9"].Goals)
	assert.Len(t, first.Events, 1)
	assert.Equal(t, 2, second.Home.Score)
	assert.Equal(t, 2, second.Home.Players["p9"].Goals)
	assert.Empty(t, m.Home.Players)
}

func TestApply_ActingSideFallback(t *testing.T) {
	cases := []struct {
		name    string
		teamID  string
		batting string
		want    string
	}{
		{name: "event team wins", teamID: "away", batting: "home", want: "away"},
		{name: "falls back to batting team", teamID: "", batting: "away", want: "away"},
		{name: "unknown team falls back to batting team", teamID: "ghost", batting: "away", want: "away"},
		{name: "falls back to home", teamID: "", batting: "", want: "home"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := liveMatch(t, SportFootball)
			m.CurrentBattingTeamID = tc.batting
			m = Apply(m, ScoreEvent{ID: "g", Timestamp: at(1), Type: EvtGoal, TeamID: tc.teamID})

			got := "home"
			if m.Away.Score == 1 {
				got = "away"
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, 1, m.Home.Score+m.Away.Score)
		})
	}
}

func TestApply_IgnoresNonLiveMatch(t *testing.T) {
	m, err := NewMatch("m1", SportFootball, Participant{ID: "a"}, Participant{ID: "b"}, "")
	require.NoError(t, err)

	got := Apply(m, ScoreEvent{ID: "g", Timestamp: at(1), Type: EvtGoal})

	assert.Equal(t, m, got)
}

func TestFootball_GoalAssistAndCards(t *testing.T) {
	m := liveMatch(t, SportFootball)
	events := []ScoreEvent{
		{ID: "1", Timestamp: at(1), Type: EvtPeriodStart, Payload: Period{Clock: "00:00"}},
		{ID: "2", Timestamp: at(2), Type: EvtGoal, TeamID: "away", Payload: Goal{ScorerID: "a9", AssistID: "a10"}},
		{ID: "3", Timestamp: at(3), Type: EvtCard, TeamID: "home", PlayerID: "h4", Payload: Card{Color: CardYellow}},
		{ID: "4", Timestamp: at(4), Type: EvtCard, TeamID: "home", PlayerID: "h4", Payload: Card{Color: CardRed}},
		{ID: "5", Timestamp: at(5), Type: EvtSubstitution, TeamID: "home", Payload: Substitution{OutID: "h7", InID: "h12"}},
		{ID: "6", Timestamp: at(6), Type: EvtPeriodEnd, Payload: Period{Clock: "45:00"}},
	}

	m = Reduce(m, events)

	assert.Equal(t, 1, m.Away.Score)
	assert.Equal(t, 1, m.Away.Players["a9"].Goals)
	assert.Equal(t, 1, m.Away.Players["a10"].Assists)
	assert.Equal(t, 0, m.Away.Players["a10"].Goals)
	assert.Equal(t, 1, m.Home.Players["h4"].YellowCards)
	assert.Equal(t, 1, m.Home.Players["h4"].RedCards)
	assert.Equal(t, 1, m.Home.Substitutions)
	assert.Contains(t, m.Home.Players, "h12")
	assert.Equal(t, 1, m.LiveState.CurrentPeriod)
	assert.Equal(t, "45:00", m.LiveState.Clock)
	assert.True(t, m.LiveState.Paused)
	assert.Equal(t, EvtPeriodEnd, m.Events[0].Type, "log is newest first")
}

func TestBasketball_PointsAndFouls(t *testing.T) {
	m := liveMatch(t, SportBasketball)
	m = Reduce(m, []ScoreEvent{
		{ID: "1", Timestamp: at(1), Type: EvtBasket, TeamID: "home", Payload: Basket{ScorerID: "h23", AssistID: "h3", Points: 3}},
		{ID: "2", Timestamp: at(2), Type: EvtBasket, TeamID: "home", PlayerID: "h23", Payload: Basket{Points: 2}},
		{ID: "3", Timestamp: at(3), Type: EvtBasket, TeamID: "away", Payload: Basket{ScorerID: "a1", Points: -2}},
		{ID: "4", Timestamp: at(4), Type: EvtFoul, TeamID: "away", PlayerID: "a1"},
	})

	assert.Equal(t, 5, m.Home.Score)
	assert.Equal(t, 5, m.Home.Players["h23"].Points)
	assert.Equal(t, 1, m.Home.Players["h3"].Assists)
	assert.Equal(t, 0, m.Away.Score, "negative points are ignored")
	assert.Equal(t, 1, m.Away.Fouls)
	assert.Equal(t, 1, m.Away.Players["a1"].Fouls)
}

func TestEnd_SetsWinnerAndBlocksFurtherEvents(t *testing.T) {
	m := liveMatch(t, SportFootball)
	m = Apply(m, ScoreEvent{ID: "g", Timestamp: at(1), Type: EvtGoal, TeamID: "away"})

	done, err := End(m, at(2))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "away", done.WinnerID)
	require.NotNil(t, done.EndedAt)
	assert.Equal(t, done, Apply(done, ScoreEvent{ID: "late", Timestamp: at(3), Type: EvtGoal}))

	_, err = End(done, at(4))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestNewMatch_RejectsBadInput(t *testing.T) {
	_, err := NewMatch("x", Sport("curling"), Participant{ID: "a"}, Participant{ID: "b"}, "")
	assert.ErrorIs(t, err, ErrUnknownSport)

	_, err = NewMatch("x", SportCricket, Participant{ID: "a"}, Participant{ID: "a"}, "")
	assert.Error(t, err)
}

func TestValidateEvent(t *testing.T) {
	cases := []struct {
		name    string
		event   ScoreEvent
		wantErr error
	}{
		{name: "valid", event: delivery(1, 4)},
		{name: "missing id", event: ScoreEvent{Timestamp: at(1), Type: EvtGoal}, wantErr: ErrInvalidEvent},
		{name: "missing timestamp", event: ScoreEvent{ID: "x", Type: EvtGoal}, wantErr: ErrInvalidEvent},
		{name: "unknown type", event: ScoreEvent{ID: "x", Timestamp: at(1), Type: "touchdown"}, wantErr: ErrUnknownEventType},
		{name: "payload mismatch", event: ScoreEvent{ID: "x", Timestamp: at(1), Type: EvtGoal, Payload: Card{}}, wantErr: ErrInvalidEvent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEvent(tc.event)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestScoreEvent_JSONKeepsTypedPayload(t *testing.T) {
	in := withBall(openingBall(1, 2), func(b *Ball) {
		b.Extras = &Extras{Type: ExtraNoBall, Runs: 1}
		b.Dismissal = &Dismissal{Type: DismissalRunOut, FielderID: "f1"}
	})
	in.Type = EvtWicket

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":"2026-05-01T14:00:01Z"`)

	var out ScoreEvent
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, UpdateScore, KindOf(delivery(1, 0)))
	assert.Equal(t, UpdateStatus, KindOf(ScoreEvent{Type: EvtPeriodStart}))
	assert.Equal(t, UpdateGeneral, KindOf(ScoreEvent{Type: EvtCard}))
}
