// Package server defines the JSON envelopes exchanged with clients and the
// small helpers shared by the hub, registry and client logic.
package server

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Inbound message types.
const (
	TypeJoin = "join"
	TypeChat = "chat"
)

// Envelope is the inbound frame. Payload is decoded once Type is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinPayload is the payload of a "join" frame.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// ChatPayload is the payload of a "chat" frame.
type ChatPayload struct {
	Message string `json:"message"`
}

// ChatMessage is delivered to every member of the sender's room.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ErrorMessage is sent back to the originating connection only.
type ErrorMessage struct {
	Error string `json:"error"`
}

// rawEnvelope defers decoding of type so a non-string type is reported as an
// unknown type rather than a malformed frame.
type rawEnvelope struct {
	Type    json.RawMessage `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// decodeEnvelope parses a raw frame into an Envelope. Anything that is not a
// JSON object is a parse error. A type that is not a string decodes as "".
func decodeEnvelope(raw []byte) (Envelope, error) {
	var r rawEnvelope
	if err := json.Unmarshal(raw, &r); err != nil {
		return Envelope{}, newRequestError(ErrParse, reasonInvalidFormat)
	}

	env := Envelope{Payload: r.Payload}
	if len(r.Type) > 0 {
		if err := json.Unmarshal(r.Type, &env.Type); err != nil {
			env.Type = ""
		}
	}
	return env, nil
}

// decodePayload unmarshals an envelope payload into v. A missing or null
// payload leaves v at its zero value so field validation reports it.
func decodePayload(payload json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return newRequestError(ErrParse, reasonInvalidFormat)
	}
	return nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
