package rules

import (
	"slices"
	"time"
)

type EventType string

const (
	EvtCard     EventType = "card"
	EvtBid      EventType = "bid"
	EvtMeld     EventType = "meld"
	EvtTrick    EventType = "trick"
	EvtScore    EventType = "score"
	EvtRoundEnd EventType = "round_end"
	EvtMatchEnd EventType = "match_end"

	// EvtHydrate is only sent to listeners when a snapshot is loaded.
	EvtHydrate EventType = "hydrate"
)

type Card struct {
	Suit string `json:"suit" yaml:"suit"`
	Rank string `json:"rank,omitempty" yaml:"rank,omitempty"`
}

// Event is one submitted game action. Which optional fields are required
// depends on Type; see validateStructure.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	PlayerID  string    `json:"playerId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Card      *Card     `json:"card,omitempty"`
	Value     *int      `json:"value,omitempty"`
	Cards     []Card    `json:"cards,omitempty"`
}

// AllCards returns the single card and the card list together.
func (e Event) AllCards() []Card {
	if e.Card == nil {
		return e.Cards
	}
	return append([]Card{*e.Card}, e.Cards...)
}

type PlayerScore struct {
	PlayerID  string `json:"playerId"`
	Points    int    `json:"points"`
	Bonuses   int    `json:"bonuses"`
	Penalties int    `json:"penalties"`
	RoundsWon int    `json:"roundsWon"`
}

// RoundState is one scoring epoch. Scores follow the game's player order.
type RoundState struct {
	RoundNumber int           `json:"roundNumber"`
	Scores      []PlayerScore `json:"scores"`
	Events      []Event       `json:"events"`
	EndedAt     *time.Time    `json:"endedAt,omitempty"`
}

func (r *RoundState) score(playerID string) *PlayerScore {
	for i := range r.Scores {
		if r.Scores[i].PlayerID == playerID {
			return &r.Scores[i]
		}
	}
	return nil
}

// Score returns a copy of the player's score in this round.
func (r RoundState) Score(playerID string) (PlayerScore, bool) {
	if ps := r.score(playerID); ps != nil {
		return *ps, true
	}
	return PlayerScore{}, false
}

type MatchState struct {
	GameID       string       `json:"gameId"`
	PlayerIDs    []string     `json:"playerIds"`
	Rounds       []RoundState `json:"rounds"`
	CurrentRound int          `json:"currentRound"` // 1-based round number
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      *time.Time   `json:"endedAt,omitempty"`
	WinnerIDs    []string     `json:"winnerIds,omitempty"`
}

// Current returns the active round.
func (s MatchState) Current() RoundState {
	return s.Rounds[s.CurrentRound-1]
}

func (s MatchState) HasPlayer(playerID string) bool {
	return slices.Contains(s.PlayerIDs, playerID)
}

// CompletedRounds counts rounds closed by a round_end.
func (s MatchState) CompletedRounds() int {
	return s.CurrentRound - 1
}

// Totals sums points, bonuses and penalties over every round. RoundsWon is
// already cumulative and is taken from the current round.
func (s MatchState) Totals() []PlayerScore {
	out := make([]PlayerScore, len(s.PlayerIDs))
	cur := s.Current()
	for i, id := range s.PlayerIDs {
		out[i].PlayerID = id
		if ps, ok := cur.Score(id); ok {
			out[i].RoundsWon = ps.RoundsWon
		}
	}
	for _, r := range s.Rounds {
		for i, id := range s.PlayerIDs {
			ps, ok := r.Score(id)
			if !ok {
				continue
			}
			out[i].Points += ps.Points
			out[i].Bonuses += ps.Bonuses
			out[i].Penalties += ps.Penalties
		}
	}
	return out
}

func (s MatchState) clone() MatchState {
	out := s
	out.PlayerIDs = slices.Clone(s.PlayerIDs)
	out.WinnerIDs = slices.Clone(s.WinnerIDs)
	out.Rounds = make([]RoundState, len(s.Rounds))
	for i, r := range s.Rounds {
		r.Scores = slices.Clone(r.Scores)
		r.Events = slices.Clone(r.Events)
		out.Rounds[i] = r
	}
	return out
}

func newRound(number int, players []string, carry func(string) int) RoundState {
	scores := make([]PlayerScore, len(players))
	for i, id := range players {
		scores[i] = PlayerScore{PlayerID: id}
		if carry != nil {
			scores[i].RoundsWon = carry(id)
		}
	}
	return RoundState{RoundNumber: number, Scores: scores, Events: []Event{}}
}

type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
