package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EvtDelivery     EventType = "delivery"
	EvtWicket       EventType = "wicket"
	EvtExtra        EventType = "extra"
	EvtGoal         EventType = "goal"
	EvtCard         EventType = "card"
	EvtSubstitution EventType = "substitution"
	EvtBasket       EventType = "basket"
	EvtFoul         EventType = "foul"
	EvtPeriodStart  EventType = "period_start"
	EvtPeriodEnd    EventType = "period_end"
	EvtMilestone    EventType = "milestone"
)

type ExtraType string

const (
	ExtraWide    ExtraType = "wide"
	ExtraNoBall  ExtraType = "no_ball"
	ExtraBye     ExtraType = "bye"
	ExtraLegBye  ExtraType = "leg_bye"
	ExtraPenalty ExtraType = "penalty"
)

type DismissalType string

const (
	DismissalBowled    DismissalType = "bowled"
	DismissalCaught    DismissalType = "caught"
	DismissalLBW       DismissalType = "lbw"
	DismissalRunOut    DismissalType = "run_out"
	DismissalStumped   DismissalType = "stumped"
	DismissalHitWicket DismissalType = "hit_wicket"
)

type CardColor string

const (
	CardYellow CardColor = "yellow"
	CardRed    CardColor = "red"
)

// Payload is the typed body of a ScoreEvent. Each EventType has exactly one
// payload type; see payloadFor.
type Payload interface{ isPayload() }

type Extras struct {
	Type ExtraType `json:"type"`
	Runs int       `json:"runs"`
}

type Dismissal struct {
	Type        DismissalType `json:"type"`
	PlayerOutID string        `json:"playerOutId,omitempty"`
	FielderID   string        `json:"fielderId,omitempty"`
}

// Ball is the payload of delivery, wicket and extra events. Runs are off the
// bat; extras runs are carried separately.
type Ball struct {
	StrikerID    string     `json:"strikerId,omitempty"`
	NonStrikerID string     `json:"nonStrikerId,omitempty"`
	BowlerID     string     `json:"bowlerId,omitempty"`
	Runs         int        `json:"runs"`
	Extras       *Extras    `json:"extras,omitempty"`
	Dismissal    *Dismissal `json:"dismissal,omitempty"`
}

type Goal struct {
	ScorerID string `json:"scorerId,omitempty"`
	AssistID string `json:"assistId,omitempty"`
}

type Basket struct {
	ScorerID string `json:"scorerId,omitempty"`
	AssistID string `json:"assistId,omitempty"`
	Points   int    `json:"points"`
}

type Card struct {
	Color CardColor `json:"color"`
}

type Substitution struct {
	OutID string `json:"outId,omitempty"`
	InID  string `json:"inId,omitempty"`
}

type Foul struct{}

type Period struct {
	Clock string `json:"clock,omitempty"`
}

type Milestone struct {
	Label string `json:"label,omitempty"`
}

func (Ball) isPayload()         {}
func (Goal) isPayload()         {}
func (Basket) isPayload()       {}
func (Card) isPayload()         {}
func (Substitution) isPayload() {}
func (Foul) isPayload()         {}
func (Period) isPayload()       {}
func (Milestone) isPayload()    {}

// ScoreEvent is one immutable recorded play. Timestamps must be assigned
// monotonically by the caller; replay orders by Timestamp and does not
// resolve ties.
type ScoreEvent struct {
	ID        string
	Timestamp time.Time
	Type      EventType
	TeamID    string
	PlayerID  string
	Payload   Payload
}

type wireEvent struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
	TeamID    string          `json:"teamId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (e ScoreEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC(),
		Type:      e.Type,
		TeamID:    e.TeamID,
		PlayerID:  e.PlayerID,
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

func (e *ScoreEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p, err := payloadFor(w.Type)
	if err != nil {
		return err
	}
	if len(w.Payload) > 0 && string(w.Payload) != "null" {
		if err := json.Unmarshal(w.Payload, p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", w.Type, err)
		}
	}
	*e = ScoreEvent{
		ID:        w.ID,
		Timestamp: w.Timestamp,
		Type:      w.Type,
		TeamID:    w.TeamID,
		PlayerID:  w.PlayerID,
		Payload:   deref(p),
	}
	return nil
}

// payloadFor returns a pointer to a zero payload for the event type.
func payloadFor(t EventType) (any, error) {
	switch t {
	case EvtDelivery, EvtWicket, EvtExtra:
		return &Ball{}, nil
	case EvtGoal:
		return &Goal{}, nil
	case EvtBasket:
		return &Basket{}, nil
	case EvtCard:
		return &Card{}, nil
	case EvtSubstitution:
		return &Substitution{}, nil
	case EvtFoul:
		return &Foul{}, nil
	case EvtPeriodStart, EvtPeriodEnd:
		return &Period{}, nil
	case EvtMilestone:
		return &Milestone{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
}

func deref(p any) Payload {
	switch v := p.(type) {
	case *Ball:
		return *v
	case *Goal:
		return *v
	case *Basket:
		return *v
	case *Card:
		return *v
	case *Substitution:
		return *v
	case *Foul:
		return *v
	case *Period:
		return *v
	case *Milestone:
		return *v
	}
	return nil
}

// UpdateKind classifies an applied change for realtime subscribers.
type UpdateKind string

const (
	UpdateScore   UpdateKind = "score"
	UpdateStatus  UpdateKind = "status"
	UpdateGeneral UpdateKind = "general"
)

func KindOf(e ScoreEvent) UpdateKind {
	switch e.Type {
	case EvtDelivery, EvtWicket, EvtExtra, EvtGoal, EvtBasket:
		return UpdateScore
	case EvtPeriodStart, EvtPeriodEnd:
		return UpdateStatus
	default:
		return UpdateGeneral
	}
}
