package engine

import (
	"errors"
	"fmt"
	"reflect"
)

var ErrUnknownEventType = errors.New("unknown event type")
var ErrUnknownSport = errors.New("unknown sport")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrInvalidEvent = errors.New("invalid event")

/*
	Apply never fails. Events are assumed valid (ValidateEvent is the caller's
	check); missing optional fields leave the related counters untouched.

	delivery/wicket/extra -> cricket ball (score, balls, strike, over rollover)
	goal                  -> football score + scorer/assist
	basket                -> basketball points + scorer/assist
	card/foul/substitution -> discipline and roster counters
	period_start/end      -> live cursor (period, clock, pause, innings change)
*/

// Apply folds one event into the match and returns the new match. The input
// match is not modified. Non-live matches are returned unchanged.
func Apply(m Match, e ScoreEvent) Match {
	if m.Status != StatusLive {
		return m
	}

	next := m
	next.Home.detach()
	next.Away.detach()

	switch m.SportID {
	case SportCricket:
		applyCricket(&next, e)
	case SportFootball:
		applyFootball(&next, e)
	case SportBasketball:
		applyBasketball(&next, e)
	}

	events := make([]ScoreEvent, 0, len(m.Events)+1)
	events = append(events, e)
	next.Events = append(events, m.Events...)
	return next
}

// ValidateEvent performs the structural checks a caller should run before Apply.
func ValidateEvent(e ScoreEvent) error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}
	if _, err := payloadFor(e.Type); err != nil {
		return err
	}
	if e.Payload == nil {
		return nil
	}
	want, _ := payloadFor(e.Type)
	if reflect.TypeOf(deref(want)) != reflect.TypeOf(e.Payload) {
		return fmt.Errorf("%w: payload does not match event type", ErrInvalidEvent)
	}
	return nil
}

// applyCommon handles events shared by the goal sports.
func applyCommon(m *Match, p *Participant, e ScoreEvent) {
	switch e.Type {
	case EvtCard:
		card, _ := e.Payload.(Card)
		p.update(e.PlayerID, func(ps *PlayerStats) {
			switch card.Color {
			case CardYellow:
				ps.YellowCards++
			case CardRed:
				ps.RedCards++
			}
		})
	case EvtFoul:
		p.Fouls++
		p.update(e.PlayerID, func(ps *PlayerStats) { ps.Fouls++ })
	case EvtSubstitution:
		sub, _ := e.Payload.(Substitution)
		p.Substitutions++
		p.update(sub.InID, func(*PlayerStats) {})
	case EvtPeriodStart:
		startPeriod(m, e)
	case EvtPeriodEnd:
		endPeriod(m, e)
	}
}

func startPeriod(m *Match, e ScoreEvent) {
	m.LiveState.CurrentPeriod++
	m.LiveState.Paused = false
	if p, ok := e.Payload.(Period); ok && p.Clock != "" {
		m.LiveState.Clock = p.Clock
	}
}

func endPeriod(m *Match, e ScoreEvent) {
	m.LiveState.Paused = true
	if p, ok := e.Payload.(Period); ok && p.Clock != "" {
		m.LiveState.Clock = p.Clock
	}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
