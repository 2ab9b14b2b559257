// Package websocket streams chat progress to browser clients.
package websocket

import "encoding/json"

// WSMessage is one frame in either direction.
type WSMessage struct {
	Type    string          `json:"type"`
	Session string          `json:"session,omitempty"`
	Delta   string          `json:"delta,omitempty"`   // partial
	Data    json.RawMessage `json:"data,omitempty"`    // tool, planning, done payloads
	Path    string          `json:"path,omitempty"`    // reload
	Code    string          `json:"code,omitempty"`    // error
	Message string          `json:"message,omitempty"` // chat text in, error text out
}

// Inbound frame types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypeChat        = "chat"
)

// Outbound frame types.
const (
	TypePong     = "pong"
	TypePartial  = "partial"
	TypeTool     = "tool"
	TypePlanning = "planning"
	TypeDone     = "done"
	TypeError    = "error"
	TypeReload   = "reload"
)

// Encode marshals a frame. Frames only hold strings and raw JSON, so
// marshalling cannot fail.
func Encode(msg WSMessage) []byte {
	data, _ := json.Marshal(msg)
	return data
}

// Frame builds a frame whose Data is payload marshalled to JSON.
func Frame(typ, session string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return Encode(WSMessage{Type: typ, Session: session, Data: data}), nil
}

type broadcastMessage struct {
	session string
	data    []byte
}
