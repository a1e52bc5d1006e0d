package protocol

import "encoding/json"

// Push-session message types.
const (
	TypeHistory = "history" // server -> client: snapshot on open
	TypeEvent   = "event"   // server -> client: one new event
	TypeChat    = "chat"    // client -> server: chat message
	TypeAction  = "action"  // client -> server: action request
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
