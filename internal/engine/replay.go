package engine

import (
	"slices"
)

// Reduce folds events, in the order given, over initial.
func Reduce(initial Match, events []ScoreEvent) Match {
	s := initial
	for _, event := range events {
		s = Apply(s, event)
	}
	return s
}

// Recalculate rebuilds the match from an empty skeleton by replaying its
// events in timestamp order. The terminal status is preserved; a completed
// match gets its winner re-derived from the recomputed scores.
func Recalculate(m Match) Match {
	status := m.Status

	base := Skeleton(m)
	base.Status = StatusLive

	out := Reduce(base, Chronological(m.Events))
	out.Status = status
	if status == StatusCompleted {
		out.WinnerID = winnerOf(out)
	}
	return out
}

// Undo drops the newest event by log order and recalculates.
func Undo(m Match) Match {
	if len(m.Events) == 0 {
		return m
	}
	m.Events = m.Events[1:]
	return Recalculate(m)
}

// Skeleton returns the match with every counter zeroed and no events.
// Identity, squads, outcome fields and the first batting side are kept.
func Skeleton(m Match) Match {
	reset := func(p Participant) Participant {
		return Participant{
			ID:      p.ID,
			Name:    p.Name,
			Players: map[string]PlayerStats{},
			Squad:   p.Squad,
		}
	}
	return Match{
		ID:                   m.ID,
		SportID:              m.SportID,
		Status:               m.Status,
		Home:                 reset(m.Home),
		Away:                 reset(m.Away),
		FirstBattingTeamID:   m.FirstBattingTeamID,
		CurrentBattingTeamID: m.FirstBattingTeamID,
		WinnerID:             m.WinnerID,
		EndedAt:              m.EndedAt,
	}
}

// Chronological returns a copy of a newest-first log sorted by timestamp
// ascending. Equal timestamps keep their original apply order.
func Chronological(events []ScoreEvent) []ScoreEvent {
	out := slices.Clone(events)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b ScoreEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}
