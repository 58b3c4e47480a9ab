package engine

const ballsPerOver = 6

func applyCricket(m *Match, e ScoreEvent) {
	switch e.Type {
	case EvtDelivery, EvtWicket, EvtExtra:
		ball, _ := e.Payload.(Ball)
		if e.Type == EvtWicket && ball.Dismissal == nil {
			ball.Dismissal = &Dismissal{}
		}
		applyBall(m, e, ball)
	case EvtPeriodStart:
		startPeriod(m, e)
	case EvtPeriodEnd:
		endPeriod(m, e)
		changeInnings(m)
	}
}

// isLegal reports whether the ball counts toward the over.
func isLegal(x *Extras) bool {
	return x == nil || (x.Type != ExtraWide && x.Type != ExtraNoBall)
}

func applyBall(m *Match, e ScoreEvent, b Ball) {
	ls := &m.LiveState
	if b.StrikerID != "" {
		ls.StrikerID = b.StrikerID
	}
	if b.NonStrikerID != "" {
		ls.NonStrikerID = b.NonStrikerID
	}
	if b.BowlerID != "" {
		ls.BowlerID = b.BowlerID
	}

	battingSide := m.actingSide(e.TeamID)
	bat := m.participant(battingSide)
	bowl := m.participant(battingSide.other())

	runs := nonNegative(b.Runs)
	extraRuns := 0
	var extraType ExtraType
	if b.Extras != nil {
		extraRuns = nonNegative(b.Extras.Runs)
		extraType = b.Extras.Type
	}
	legal := isLegal(b.Extras)

	bat.Score += runs + extraRuns

	striker := ls.StrikerID
	bat.update(striker, func(ps *PlayerStats) {
		ps.Runs += runs
		if extraType != ExtraWide {
			ps.BallsFaced++
		}
		switch runs {
		case 4:
			ps.Fours++
		case 6:
			ps.Sixes++
		}
	})

	// Wides and no-balls are charged to the bowler but are not balls bowled.
	conceded := runs
	if extraType == ExtraWide || extraType == ExtraNoBall {
		conceded += extraRuns
	}
	bowler := ls.BowlerID
	bowl.update(bowler, func(ps *PlayerStats) {
		ps.RunsConceded += conceded
		if legal {
			ps.BallsBowled++
		}
	})

	if d := b.Dismissal; d != nil {
		dismiss(m, bat, bowl, bowler, striker, *d)
	}

	if runs%2 == 1 {
		swapStrike(ls)
	}

	if !legal {
		return
	}
	bat.Balls++
	ls.BallsInCurrentOver++
	if ls.BallsInCurrentOver == ballsPerOver {
		bat.Overs++
		ls.BallsInCurrentOver = 0
		ls.CurrentOver = bat.Overs
		swapStrike(ls)
		ls.BowlerID = ""
	}
}

func dismiss(m *Match, bat, bowl *Participant, bowler, striker string, d Dismissal) {
	bat.Wickets++

	out := d.PlayerOutID
	if out == "" {
		out = striker
	}
	bat.update(out, func(ps *PlayerStats) { ps.Out = true })

	if d.Type != DismissalRunOut {
		bowl.update(bowler, func(ps *PlayerStats) { ps.Wickets++ })
	}
	bowl.update(d.FielderID, func(ps *PlayerStats) {
		switch d.Type {
		case DismissalCaught:
			ps.Catches++
		case DismissalRunOut:
			ps.RunOuts++
		case DismissalStumped:
			ps.Stumpings++
		}
	})

	// The incoming batter is named on the next ball.
	switch out {
	case m.LiveState.StrikerID:
		m.LiveState.StrikerID = ""
	case m.LiveState.NonStrikerID:
		m.LiveState.NonStrikerID = ""
	}
}

func swapStrike(ls *LiveState) {
	ls.StrikerID, ls.NonStrikerID = ls.NonStrikerID, ls.StrikerID
}

// changeInnings hands the bat to the other side and clears the cursor.
func changeInnings(m *Match) {
	batting := m.actingSide("")
	m.CurrentBattingTeamID = m.participant(batting.other()).ID
	m.LiveState.StrikerID = ""
	m.LiveState.NonStrikerID = ""
	m.LiveState.BowlerID = ""
	m.LiveState.BallsInCurrentOver = 0
	m.LiveState.CurrentOver = 0
}
