package rules

import "fmt"

// validateStructure checks the shape of an event independent of game rules.
func validateStructure(state MatchState, evt Event) (string, bool) {
	switch evt.Type {
	case "":
		return "event type is required", false
	case EvtHydrate:
		return "hydrate events cannot be submitted", false
	}

	if evt.PlayerID == "" {
		if evt.Type != EvtMatchEnd && evt.Type != EvtRoundEnd {
			return fmt.Sprintf("%s event requires a player", evt.Type), false
		}
	} else if !state.HasPlayer(evt.PlayerID) {
		return fmt.Sprintf("player %s is not in this game", evt.PlayerID), false
	}

	switch evt.Type {
	case EvtCard:
		if evt.Card == nil || evt.Card.Suit == "" {
			return "card event requires a suit", false
		}
	case EvtBid:
		if evt.Value == nil {
			return "bid requires a numeric value", false
		}
		if *evt.Value < 0 {
			return "bid value must be non-negative", false
		}
	case EvtMeld:
		if len(evt.Cards) == 0 {
			return "meld requires at least one card", false
		}
	}
	return "", true
}
