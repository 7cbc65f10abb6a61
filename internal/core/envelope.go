package core

import (
	"encoding/json"
	"fmt"
)

// Client events.
const (
	EventCreateRoom = "create-room"
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventRenameUser = "rename-user"
	EventKickMember = "kick-member"
	EventWhoAmI     = "whoami"
	EventPing       = "ping"
)

// Server events.
const (
	EventAck              = "ack"
	EventPong             = "pong"
	EventMemberJoined     = "member-joined"
	EventMemberLeft       = "member-left"
	EventKicked           = "kicked"
	EventPeerDisconnected = "peer-disconnected"
	EventPeerReconnected  = "peer-reconnected"
	EventNameChanged      = "name-changed"
	EventSessionResumed   = "session-resumed"
)

// Envelope is the inbound shape of every client frame.
type Envelope struct {
	Type string          `json:"type"`
	ID   *int64          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type string `json:"type"`
	ID   *int64 `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Encode builds a server event frame.
func Encode(event string, payload any) (Frame, error) {
	b, err := json.Marshal(outbound{Type: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

// EncodeAck builds the reply to the client frame carrying id.
func EncodeAck(id *int64, body any) (Frame, error) {
	b, err := json.Marshal(outbound{Type: EventAck, ID: id, Data: body})
	if err != nil {
		return nil, fmt.Errorf("encode ack: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses a raw client frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
