package rules

import (
	"fmt"
	"slices"
)

// Fixed always yields amount.
func Fixed(amount int) Formula {
	return FormulaFunc(func(RuleContext) int { return amount })
}

// EventValue yields the event's numeric value times multiplier; events
// without a value yield 0.
func EventValue(multiplier int) Formula {
	return FormulaFunc(func(ctx RuleContext) int {
		if ctx.Event.Value == nil {
			return 0
		}
		return *ctx.Event.Value * multiplier
	})
}

// CardTable sums the table entry for each card's rank. Ranks missing from the
// table count as 0.
func CardTable(table map[string]int) Formula {
	return FormulaFunc(func(ctx RuleContext) int {
		total := 0
		for _, c := range ctx.Event.AllCards() {
			total += table[c.Rank]
		}
		return total
	})
}

// PerCard yields amount for every card on the event.
func PerCard(amount int) Formula {
	return FormulaFunc(func(ctx RuleContext) int {
		return amount * len(ctx.Event.AllCards())
	})
}

func ValueAtLeast(n int) Predicate {
	return PredicateFunc(func(ctx RuleContext) bool {
		return ctx.Event.Value != nil && *ctx.Event.Value >= n
	})
}

func SuitIs(suit string) Predicate {
	return PredicateFunc(func(ctx RuleContext) bool {
		return slices.ContainsFunc(ctx.Event.AllCards(), func(c Card) bool { return c.Suit == suit })
	})
}

func CardsAtLeast(n int) Predicate {
	return PredicateFunc(func(ctx RuleContext) bool {
		return len(ctx.Event.AllCards()) >= n
	})
}

// BidRange rejects bids outside [lo, hi].
func BidRange(lo, hi int) Validator {
	return ValidatorFunc(func(_ MatchState, evt Event) (string, bool) {
		if evt.Type != EvtBid || evt.Value == nil {
			return "", true
		}
		if *evt.Value < lo || *evt.Value > hi {
			return fmt.Sprintf("bid must be between %d and %d", lo, hi), false
		}
		return "", true
	})
}

// OneBidPerRound rejects a second bid from the same player within a round.
func OneBidPerRound() Validator {
	return ValidatorFunc(func(state MatchState, evt Event) (string, bool) {
		if evt.Type != EvtBid {
			return "", true
		}
		for _, prev := range state.Current().Events {
			if prev.Type == EvtBid && prev.PlayerID == evt.PlayerID {
				return "player already bid this round", false
			}
		}
		return "", true
	})
}

// Chain runs validators in order and stops at the first rejection.
func Chain(vs ...Validator) Validator {
	return ValidatorFunc(func(state MatchState, evt Event) (string, bool) {
		for _, v := range vs {
			if reason, ok := v.Validate(state, evt); !ok {
				return reason, false
			}
		}
		return "", true
	})
}

// HighestTotal ends the match immediately; every player sharing the highest
// total wins.
func HighestTotal() WinEvaluator {
	return WinFunc(func(state MatchState) WinResult {
		return WinResult{Done: true, Winners: leaders(state.Totals(), func(ps PlayerScore) int { return ps.Points })}
	})
}

// TargetPoints ends the match once any player's total reaches target.
func TargetPoints(target int) WinEvaluator {
	return WinFunc(func(state MatchState) WinResult {
		totals := state.Totals()
		if !slices.ContainsFunc(totals, func(ps PlayerScore) bool { return ps.Points >= target }) {
			return WinResult{}
		}
		return WinResult{Done: true, Winners: leaders(totals, func(ps PlayerScore) int { return ps.Points })}
	})
}

// MostRoundsWon ends the match after rounds completed rounds.
func MostRoundsWon(rounds int) WinEvaluator {
	return WinFunc(func(state MatchState) WinResult {
		if state.CompletedRounds() < rounds {
			return WinResult{}
		}
		return WinResult{Done: true, Winners: leaders(state.Totals(), func(ps PlayerScore) int { return ps.RoundsWon })}
	})
}

func leaders(totals []PlayerScore, key func(PlayerScore) int) []string {
	var out []string
	best := 0
	for i, ps := range totals {
		v := key(ps)
		switch {
		case i == 0 || v > best:
			best = v
			out = []string{ps.PlayerID}
		case v == best:
			out = append(out, ps.PlayerID)
		}
	}
	return out
}

// Presets are the configs available without a rules directory.
func Presets() map[string]ScoringConfig {
	return map[string]ScoringConfig{
		// tally scores each score event's value for the acting player; the
		// highest total wins when the match is ended.
		"tally": {
			Name: "tally",
			Scoring: []ScoringRule{
				{ID: "score", On: EvtScore, AppliesTo: TargetActor, Formula: EventValue(1)},
			},
			WinEvaluator:  HighestTotal(),
			AllowNegative: true,
		},
	}
}
