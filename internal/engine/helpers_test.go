package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)

func at(seq int) time.Time {
	return t0.Add(time.Duration(seq) * time.Second)
}

func liveMatch(t *testing.T, sport Sport) Match {
	t.Helper()
	m, err := NewMatch("m1", sport, Participant{ID: "home", Name: "Home XI"}, Participant{ID: "away", Name: "Away XI"}, "home")
	require.NoError(t, err)
	m, err = Start(m)
	require.NoError(t, err)
	return m
}

func delivery(seq, runs int) ScoreEvent {
	return ScoreEvent{
		ID:        fmt.Sprintf("e%d", seq),
		Timestamp: at(seq),
		Type:      EvtDelivery,
		Payload:   Ball{Runs: runs},
	}
}

func withBall(e ScoreEvent, fn func(*Ball)) ScoreEvent {
	b, _ := e.Payload.(Ball)
	fn(&b)
	e.Payload = b
	return e
}

// openingBall names the batters and the bowler on the first ball.
func openingBall(seq, runs int) ScoreEvent {
	return withBall(delivery(seq, runs), func(b *Ball) {
		b.StrikerID = "s1"
		b.NonStrikerID = "s2"
		b.BowlerID = "b1"
	})
}
