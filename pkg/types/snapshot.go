package types

import "encoding/json"

// StateSnapshot:
//   version: number        // bumps on every accepted change
//   kind: "score" | "status" | "general"   // match stream only
//   syncStatus: "synced" | "syncing" | "error"
//   match: Match           // match stream: home/away participants, liveState, events newest first
//   game: MatchState       // game stream: playerIds, rounds, currentRound, winnerIds

// NewMatchSnapshot wraps a match for the match stream.
func NewMatchSnapshot(version uint64, kind, syncStatus string, match any) (ServerMessage, error) {
	raw, err := json.Marshal(match)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Type: MsgStateSnapshot, Version: version, Kind: kind, SyncStatus: syncStatus, Match: raw}, nil
}

// NewGameSnapshot wraps a rule-engine game state for the game stream.
func NewGameSnapshot(version uint64, syncStatus string, state any) (ServerMessage, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Type: MsgStateSnapshot, Version: version, SyncStatus: syncStatus, Game: raw}, nil
}
