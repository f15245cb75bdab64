package msg

import "encoding/json"

// GatewayMessage is the envelope of every frame exchanged with the
// platform gateway.
type GatewayMessage struct {
	Op        OpCode          `json:"op"`
	EventData json.RawMessage `json:"d"`
	Seq       *int64          `json:"s,omitempty"`
	EventType EventType       `json:"t,omitempty"`
}
