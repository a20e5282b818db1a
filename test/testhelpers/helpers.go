// Package testhelpers provides shared utilities for the yapper integration tests.
//
// It wraps the WebSocket dialing and the join/chat envelope encoding so test
// files can speak the relay protocol without repeating the JSON shapes.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tarun2000/yapper-BE/internal/server"
)

// DefaultOrigin is allowed by the server's default configuration.
const DefaultOrigin = "http://localhost:8080"

// ReadTimeout bounds every helper that waits for a frame.
const ReadTimeout = 2 * time.Second

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket dials url with the given Origin header. An empty origin
// sends no header at all.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials url with DefaultOrigin and closes the connection when
// the test ends.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(url, DefaultOrigin)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeEnvelope(conn *websocket.Conn, msgType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(server.Envelope{Type: msgType, Payload: body})
}

// Join sends a join frame for roomID as username.
func Join(conn *websocket.Conn, roomID, username string) error {
	return writeEnvelope(conn, server.TypeJoin, server.JoinPayload{RoomID: roomID, Username: username})
}

// SendChat sends a chat frame.
func SendChat(conn *websocket.Conn, message string) error {
	return writeEnvelope(conn, server.TypeChat, server.ChatPayload{Message: message})
}

// MustJoin joins roomID and waits until the server has processed the frame.
// A join produces no reply, so the helper round-trips through an invalid
// frame whose error reply can only arrive after the join was handled.
func MustJoin(t *testing.T, conn *websocket.Conn, roomID, username string) {
	t.Helper()
	if err := Join(conn, roomID, username); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sync"}`)); err != nil {
		t.Fatalf("Failed to send sync frame: %v", err)
	}
	if reason := ReceiveError(t, conn); reason != "Unknown message type" {
		t.Fatalf("Unexpected reply while joining: %q", reason)
	}
}

// ReceiveChat reads the next frame and decodes it as a chat message.
func ReceiveChat(t *testing.T, conn *websocket.Conn) server.ChatMessage {
	t.Helper()
	var msg server.ChatMessage
	raw := receiveRaw(t, conn)
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Invalid chat frame %q: %v", raw, err)
	}
	if msg.Username == "" {
		t.Fatalf("Expected a chat frame, got %q", raw)
	}
	return msg
}

// ReceiveError reads the next frame and returns its error reason.
func ReceiveError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var msg server.ErrorMessage
	raw := receiveRaw(t, conn)
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Error == "" {
		t.Fatalf("Expected an error frame, got %q", raw)
	}
	return msg.Error
}

func receiveRaw(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return raw
}

// ExpectNoMessage fails if a frame arrives on conn within timeout. A timed
// out gorilla connection cannot be read again, so call it last.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", raw)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
