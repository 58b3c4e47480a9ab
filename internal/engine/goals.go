package engine

func applyFootball(m *Match, e ScoreEvent) {
	p := m.participant(m.actingSide(e.TeamID))
	if e.Type != EvtGoal {
		applyCommon(m, p, e)
		return
	}

	g, _ := e.Payload.(Goal)
	p.Score++
	p.update(scorer(g.ScorerID, e.PlayerID), func(ps *PlayerStats) { ps.Goals++ })
	p.update(g.AssistID, func(ps *PlayerStats) { ps.Assists++ })
}

func applyBasketball(m *Match, e ScoreEvent) {
	p := m.participant(m.actingSide(e.TeamID))
	if e.Type != EvtBasket {
		applyCommon(m, p, e)
		return
	}

	b, _ := e.Payload.(Basket)
	points := nonNegative(b.Points)
	p.Score += points
	p.update(scorer(b.ScorerID, e.PlayerID), func(ps *PlayerStats) { ps.Points += points })
	p.update(b.AssistID, func(ps *PlayerStats) { ps.Assists++ })
}

func scorer(payloadID, eventPlayerID string) string {
	if payloadID != "" {
		return payloadID
	}
	return eventPlayerID
}
