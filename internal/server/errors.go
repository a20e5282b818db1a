package server

import (
	"errors"
	"fmt"
)

// Request error kinds. Each is local to the connection that sent the frame.
var (
	ErrParse       = errors.New("parse error")
	ErrValidation  = errors.New("validation error")
	ErrNotJoined   = errors.New("not joined")
	ErrUnknownType = errors.New("unknown message type")
)

// Transport errors returned by Client.Send during fan-out.
var (
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

const (
	reasonInvalidFormat   = "Invalid message format"
	reasonJoinFields      = "Room ID and username are required for join type"
	reasonNotJoined       = "You must join a room before sending messages"
	reasonMessageRequired = "Message content is required for chat type"
	reasonUnknownType     = "Unknown message type"
)

// RequestError is a rejected inbound frame. Reason is what the sender sees.
type RequestError struct {
	Kind   error
	Reason string
}

func newRequestError(kind error, reason string) *RequestError {
	return &RequestError{Kind: kind, Reason: reason}
}

func (e *RequestError) Error() string { return e.Reason }

func (e *RequestError) Unwrap() error { return e.Kind }

// errorKind returns the metrics label for err.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	default:
		return "internal"
	}
}

// errorReason returns the text sent back to the client for err.
func errorReason(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Reason
	}
	return fmt.Sprintf("internal error: %v", err)
}
