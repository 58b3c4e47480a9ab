package types

import "encoding/json"

// Client -> Server
// Submit:
//   event: ScoreEvent (match stream) or game Event (game stream)
//
// Undo: {}   (match stream only)
const (
	MsgSubmit = "Submit"
	MsgUndo   = "Undo"
)

// Server -> Client
// StateSnapshot: see snapshot.go
//
// SubmitResult (game stream):
//   accepted: boolean
//   reason: string   // set when rejected
//
// Error:
//   error: string
const (
	MsgStateSnapshot = "StateSnapshot"
	MsgSubmitResult  = "SubmitResult"
	MsgError         = "Error"
)

type ClientMessage struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event,omitempty"`
}

type ServerMessage struct {
	Type       string          `json:"type"`
	Version    uint64          `json:"version,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	SyncStatus string          `json:"syncStatus,omitempty"`
	Match      json.RawMessage `json:"match,omitempty"`
	Game       json.RawMessage `json:"game,omitempty"`
	Accepted   *bool           `json:"accepted,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func NewError(msg string) ServerMessage {
	return ServerMessage{Type: MsgError, Error: msg}
}

func NewSubmitResult(accepted bool, reason string) ServerMessage {
	return ServerMessage{Type: MsgSubmitResult, Accepted: &accepted, Reason: reason}
}
