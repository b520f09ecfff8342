package model

import "encoding/json"

// Control events a client sends over the live channel.
const (
	EventJoinChannel   = "join-channel"
	EventLeaveChannel  = "leave-channel"
	EventNewMessage    = "new-message"
	EventUpdateMessage = "update-message"
)

// Envelope frames every event on the live channel in both directions:
// a name plus an opaque JSON payload. Server-to-client names are the
// room-scoped chat:* names, client-to-server names are the control events
// above.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into a framed event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}
