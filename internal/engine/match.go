package engine

import (
	"maps"
	"time"
)

type Sport string

const (
	SportCricket    Sport = "cricket"
	SportFootball   Sport = "football"
	SportBasketball Sport = "basketball"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
)

// PlayerStats is one player's cumulative contribution inside a participant.
type PlayerStats struct {
	PlayerID string `json:"playerId"`

	Runs       int  `json:"runs,omitempty"`
	BallsFaced int  `json:"ballsFaced,omitempty"`
	Fours      int  `json:"fours,omitempty"`
	Sixes      int  `json:"sixes,omitempty"`
	Out        bool `json:"out,omitempty"`

	BallsBowled  int `json:"ballsBowled,omitempty"`
	RunsConceded int `json:"runsConceded,omitempty"`
	Wickets      int `json:"wickets,omitempty"`

	Catches   int `json:"catches,omitempty"`
	RunOuts   int `json:"runOuts,omitempty"`
	Stumpings int `json:"stumpings,omitempty"`

	Goals       int `json:"goals,omitempty"`
	Assists     int `json:"assists,omitempty"`
	Points      int `json:"points,omitempty"`
	YellowCards int `json:"yellowCards,omitempty"`
	RedCards    int `json:"redCards,omitempty"`
	Fouls       int `json:"fouls,omitempty"`
}

type Squad struct {
	PlayerIDs      []string `json:"playerIds"`
	CaptainID      string   `json:"captainId,omitempty"`
	WicketKeeperID string   `json:"wicketKeeperId,omitempty"`
}

// Participant is one side of a match. Players is keyed by player id and holds
// at most one entry per player.
type Participant struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name,omitempty"`
	Score         int                    `json:"score"`
	Wickets       int                    `json:"wickets"`
	Balls         int                    `json:"balls"`
	Overs         int                    `json:"overs"`
	Fouls         int                    `json:"fouls"`
	Substitutions int                    `json:"substitutions"`
	Players       map[string]PlayerStats `json:"players"`
	Squad         *Squad                 `json:"squad,omitempty"`
}

// LiveState is the cursor for whose turn it is. BallsInCurrentOver stays in [0,6).
type LiveState struct {
	StrikerID          string `json:"strikerId,omitempty"`
	NonStrikerID       string `json:"nonStrikerId,omitempty"`
	BowlerID           string `json:"bowlerId,omitempty"`
	CurrentOver        int    `json:"currentOver"`
	BallsInCurrentOver int    `json:"ballsInCurrentOver"`
	CurrentPeriod      int    `json:"currentPeriod"`
	Clock              string `json:"clock,omitempty"`
	Paused             bool   `json:"paused"`
}

type Match struct {
	ID                   string       `json:"id"`
	SportID              Sport        `json:"sportId"`
	Status               Status       `json:"status"`
	Home                 Participant  `json:"home"`
	Away                 Participant  `json:"away"`
	LiveState            LiveState    `json:"liveState"`
	FirstBattingTeamID   string       `json:"firstBattingTeamId,omitempty"`
	CurrentBattingTeamID string       `json:"currentBattingTeamId,omitempty"`
	Events               []ScoreEvent `json:"events"` // newest first
	WinnerID             string       `json:"winnerId,omitempty"`
	EndedAt              *time.Time   `json:"endedAt,omitempty"`
}

type side int

const (
	sideHome side = iota
	sideAway
)

func (s side) other() side {
	if s == sideHome {
		return sideAway
	}
	return sideHome
}

func (m *Match) participant(s side) *Participant {
	if s == sideAway {
		return &m.Away
	}
	return &m.Home
}

func (m *Match) sideOf(teamID string) (side, bool) {
	switch {
	case teamID == "":
		return sideHome, false
	case teamID == m.Home.ID:
		return sideHome, true
	case teamID == m.Away.ID:
		return sideAway, true
	}
	return sideHome, false
}

// actingSide resolves the acting participant: the event's team, then the
// current batting team, then home.
func (m *Match) actingSide(teamID string) side {
	if s, ok := m.sideOf(teamID); ok {
		return s
	}
	if s, ok := m.sideOf(m.CurrentBattingTeamID); ok {
		return s
	}
	return sideHome
}

// update applies fn to the player's stats, creating the entry on first use.
// The Players map must already be owned by the caller (see detach).
func (p *Participant) update(playerID string, fn func(*PlayerStats)) {
	if playerID == "" {
		return
	}
	if p.Players == nil {
		p.Players = map[string]PlayerStats{}
	}
	ps, ok := p.Players[playerID]
	if !ok {
		ps = PlayerStats{PlayerID: playerID}
	}
	fn(&ps)
	p.Players[playerID] = ps
}

// detach gives the participant its own Players map so writes never reach the
// previous match value.
func (p *Participant) detach() {
	if p.Players == nil {
		p.Players = map[string]PlayerStats{}
		return
	}
	p.Players = maps.Clone(p.Players)
}

// Player returns the stats for a player on either side.
func (m Match) Player(playerID string) (PlayerStats, bool) {
	if ps, ok := m.Home.Players[playerID]; ok {
		return ps, true
	}
	ps, ok := m.Away.Players[playerID]
	return ps, ok
}

// BattingSide returns the participant currently batting (cricket), or home.
func (m Match) BattingSide() Participant {
	return *m.participant(m.actingSide(""))
}
