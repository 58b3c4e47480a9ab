package engine

import (
	"fmt"
	"time"
)

// NewMatch creates a draft match with zeroed participants.
func NewMatch(id string, sport Sport, home, away Participant, firstBattingTeamID string) (Match, error) {
	switch sport {
	case SportCricket, SportFootball, SportBasketball:
	default:
		return Match{}, fmt.Errorf("%w: %q", ErrUnknownSport, sport)
	}
	if home.ID == "" || away.ID == "" || home.ID == away.ID {
		return Match{}, fmt.Errorf("match needs two distinct participant ids, got %q and %q", home.ID, away.ID)
	}
	if firstBattingTeamID == "" {
		firstBattingTeamID = home.ID
	}

	m := Match{
		ID:                 id,
		SportID:            sport,
		Status:             StatusDraft,
		Home:               Participant{ID: home.ID, Name: home.Name, Squad: home.Squad},
		Away:               Participant{ID: away.ID, Name: away.Name, Squad: away.Squad},
		FirstBattingTeamID: firstBattingTeamID,
	}
	return Skeleton(m), nil
}

func Start(m Match) (Match, error) {
	if m.Status != StatusDraft {
		return m, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, StatusLive)
	}
	m.Status = StatusLive
	return m, nil
}

// End completes a live match and commits the outcome. A draw leaves WinnerID empty.
func End(m Match, at time.Time) (Match, error) {
	if m.Status != StatusLive {
		return m, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, StatusCompleted)
	}
	m.Status = StatusCompleted
	ended := at.UTC()
	m.EndedAt = &ended
	m.WinnerID = winnerOf(m)
	return m, nil
}

// winnerOf is the side with the higher score, or empty on a draw.
func winnerOf(m Match) string {
	switch {
	case m.Home.Score > m.Away.Score:
		return m.Home.ID
	case m.Away.Score > m.Home.Score:
		return m.Away.ID
	default:
		return ""
	}
}
