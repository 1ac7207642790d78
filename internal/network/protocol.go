package network

import (
	"encoding/json"
	"log"
	"time"
)

// Message is the envelope for every client/server exchange. Payload is kept
// raw so each handler decodes it into the struct its type implies.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// MaxMessageSize bounds a single inbound frame.
const MaxMessageSize = 64 * 1024

// TypeError is the envelope type of error replies.
const TypeError = "error"

// NewMessage stamps and encodes a message. A nil payload produces an empty envelope.
func NewMessage(msgType string, payload any) Message {
	msg := Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload == nil {
		return msg
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: cannot encode payload for %s: %v", msgType, err)
		return msg
	}
	msg.Payload = data
	return msg
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
