// Package streaming defines the JSON envelopes the bridge streams to a
// live viewer over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeAddActor     = "add_actor"
	TypeActorState   = "actor_state"
	TypeRemoveActor  = "remove_actor"
	TypeInteraction  = "interaction"

	TypeAck = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session header.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// Decode unmarshals an envelope's payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
