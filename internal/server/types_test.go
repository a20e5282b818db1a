package server

import (
	"errors"
	"fmt"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := decodeEnvelope([]byte(`{"type":"chat","payload":{"message":"hi"}}`))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if env.Type != TypeChat {
		t.Errorf("Type = %q", env.Type)
	}

	var chat ChatPayload
	if err := decodePayload(env.Payload, &chat); err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if chat.Message != "hi" {
		t.Errorf("Message = %q", chat.Message)
	}
}

func TestDecodeEnvelopeInvalid(t *testing.T) {
	for _, raw := range []string{``, `nope`, `{"type":`, `"join"`, `[1]`} {
		_, err := decodeEnvelope([]byte(raw))
		if !errors.Is(err, ErrParse) {
			t.Errorf("decodeEnvelope(%q) = %v, want parse error", raw, err)
		}
	}
}

func TestDecodeEnvelopeNonStringType(t *testing.T) {
	for _, raw := range []string{`{"type":1,"payload":{}}`, `{"type":{"a":1}}`, `{"type":null}`, `{"type":["join"]}`} {
		env, err := decodeEnvelope([]byte(raw))
		if err != nil {
			t.Errorf("decodeEnvelope(%q) = %v, want no error", raw, err)
			continue
		}
		if env.Type != "" {
			t.Errorf("decodeEnvelope(%q).Type = %q, want empty", raw, env.Type)
		}
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	for _, raw := range []string{``, `null`, `  null `} {
		var join JoinPayload
		if err := decodePayload([]byte(raw), &join); err != nil {
			t.Errorf("decodePayload(%q) = %v", raw, err)
		}
		if join != (JoinPayload{}) {
			t.Errorf("decodePayload(%q) filled %+v", raw, join)
		}
	}

	var join JoinPayload
	if err := decodePayload([]byte(`[]`), &join); !errors.Is(err, ErrParse) {
		t.Errorf("array payload: got %v, want parse error", err)
	}
}

func TestErrorKindAndReason(t *testing.T) {
	tests := []struct {
		err    error
		kind   string
		reason string
	}{
		{newRequestError(ErrParse, reasonInvalidFormat), "parse", reasonInvalidFormat},
		{newRequestError(ErrValidation, reasonJoinFields), "validation", reasonJoinFields},
		{newRequestError(ErrNotJoined, reasonNotJoined), "not_joined", reasonNotJoined},
		{newRequestError(ErrUnknownType, reasonUnknownType), "unknown_type", reasonUnknownType},
		{fmt.Errorf("dispatch: %w", newRequestError(ErrValidation, reasonMessageRequired)), "validation", reasonMessageRequired},
		{errors.New("boom"), "internal", "internal error: boom"},
	}

	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.kind {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.kind)
		}
		if got := errorReason(tt.err); got != tt.reason {
			t.Errorf("errorReason(%v) = %q, want %q", tt.err, got, tt.reason)
		}
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	if !isExpectedCloseError(nil) {
		t.Error("nil should be expected")
	}
	if !isExpectedCloseError(errors.New("write tcp: use of closed network connection")) {
		t.Error("closed network connection should be expected")
	}
	if isExpectedCloseError(errors.New("permission denied")) {
		t.Error("unrelated error reported as expected")
	}
}
