package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tarun2000/yapper-BE/internal/server"
	"github.com/tarun2000/yapper-BE/test/testhelpers"
)

// TestRoomScenario walks two rooms through joins, chats and a disconnect.
func TestRoomScenario(t *testing.T) {
	env := startTestServer(t, nil)

	alice := testhelpers.MustConnect(t, env.wsURL)
	bob := testhelpers.MustConnect(t, env.wsURL)
	carol := testhelpers.MustConnect(t, env.wsURL)

	testhelpers.MustJoin(t, alice, "lobby", "alice")
	testhelpers.MustJoin(t, bob, "lobby", "bob")
	testhelpers.MustJoin(t, carol, "side", "carol")

	if err := testhelpers.SendChat(alice, "hi all"); err != nil {
		t.Fatalf("alice chat: %v", err)
	}
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		msg := testhelpers.ReceiveChat(t, conn)
		if msg != (server.ChatMessage{Username: "alice", Message: "hi all"}) {
			t.Errorf("%s received %+v", name, msg)
		}
	}

	if err := testhelpers.SendChat(carol, "anyone?"); err != nil {
		t.Fatalf("carol chat: %v", err)
	}
	if msg := testhelpers.ReceiveChat(t, carol); msg.Username != "carol" || msg.Message != "anyone?" {
		t.Errorf("carol received %+v", msg)
	}

	if err := testhelpers.CloseWebSocket(bob); err != nil {
		t.Fatalf("close bob: %v", err)
	}
	waitFor(t, "bob to leave", func() bool { return len(env.hub.Registry().Members("lobby")) == 1 })

	if err := testhelpers.SendChat(alice, "bye bob"); err != nil {
		t.Fatalf("alice chat: %v", err)
	}
	if msg := testhelpers.ReceiveChat(t, alice); msg.Message != "bye bob" {
		t.Errorf("alice received %+v", msg)
	}

	// carol is in another room and must see neither lobby message.
	testhelpers.ExpectNoMessage(t, carol, 200*time.Millisecond)
}

// TestErrorReplies checks every rejected frame is answered to its sender with
// the matching reason and nothing is relayed to the room.
func TestErrorReplies(t *testing.T) {
	env := startTestServer(t, nil)

	sender := testhelpers.MustConnect(t, env.wsURL)
	listener := testhelpers.MustConnect(t, env.wsURL)
	testhelpers.MustJoin(t, listener, "lobby", "listener")

	// Frames sent before joining.
	for _, tc := range []struct {
		frame  string
		reason string
	}{
		{`not json`, "Invalid message format"},
		{`{"type":"chat","payload":{"message":"hi"}}`, "You must join a room before sending messages"},
		{`{"type":"join","payload":{"roomId":"","username":"x"}}`, "Room ID and username are required for join type"},
		{`{"type":"whisper","payload":{}}`, "Unknown message type"},
	} {
		if err := sender.WriteMessage(websocket.TextMessage, []byte(tc.frame)); err != nil {
			t.Fatalf("write %s: %v", tc.frame, err)
		}
		if got := testhelpers.ReceiveError(t, sender); got != tc.reason {
			t.Errorf("frame %s: reason %q, want %q", tc.frame, got, tc.reason)
		}
	}

	testhelpers.MustJoin(t, sender, "lobby", "sender")
	if err := testhelpers.SendChat(sender, ""); err != nil {
		t.Fatalf("send empty chat: %v", err)
	}
	if got := testhelpers.ReceiveError(t, sender); got != "Message content is required for chat type" {
		t.Errorf("empty chat reason %q", got)
	}

	testhelpers.ExpectNoMessage(t, listener, 200*time.Millisecond)
}

// TestRejoinMovesConnection verifies a second join replaces the first.
func TestRejoinMovesConnection(t *testing.T) {
	env := startTestServer(t, nil)

	mover := testhelpers.MustConnect(t, env.wsURL)
	stayer := testhelpers.MustConnect(t, env.wsURL)
	testhelpers.MustJoin(t, stayer, "a", "stayer")
	testhelpers.MustJoin(t, mover, "a", "mover")
	testhelpers.MustJoin(t, mover, "b", "renamed")

	if got := len(env.hub.Registry().Members("a")); got != 1 {
		t.Errorf("room a has %d members, want 1", got)
	}

	if err := testhelpers.SendChat(mover, "moved"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if msg := testhelpers.ReceiveChat(t, mover); msg.Username != "renamed" {
		t.Errorf("sender name %q, want renamed", msg.Username)
	}
	testhelpers.ExpectNoMessage(t, stayer, 200*time.Millisecond)
}

// TestMessageSizeLimit verifies oversized frames close the connection and
// drop its membership.
func TestMessageSizeLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 128
	})

	conn := testhelpers.MustConnect(t, env.wsURL)
	testhelpers.MustJoin(t, conn, "lobby", "big")

	if err := testhelpers.SendChat(conn, strings.Repeat("x", 256)); err != nil {
		t.Fatalf("write oversized chat: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(testhelpers.ReadTimeout)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection")
	}

	waitFor(t, "membership removal", func() bool { return env.hub.Registry().Len() == 0 })
}

// TestLongMessageWithDefaultLimit verifies a chat of a few kilobytes is
// relayed under the default frame limit and the sender stays connected.
func TestLongMessageWithDefaultLimit(t *testing.T) {
	env := startTestServer(t, nil)

	alice := testhelpers.MustConnect(t, env.wsURL)
	bob := testhelpers.MustConnect(t, env.wsURL)
	testhelpers.MustJoin(t, alice, "lobby", "alice")
	testhelpers.MustJoin(t, bob, "lobby", "bob")

	for _, size := range []int{600, 4096} {
		text := strings.Repeat("y", size)
		if err := testhelpers.SendChat(alice, text); err != nil {
			t.Fatalf("send %d bytes: %v", size, err)
		}
		for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
			if msg := testhelpers.ReceiveChat(t, conn); msg.Message != text {
				t.Errorf("%s received %d bytes, want %d", name, len(msg.Message), size)
			}
		}
	}

	if n := env.hub.Registry().Len(); n != 2 {
		t.Errorf("registry holds %d members, want 2", n)
	}
}

// TestSameUsernameInRoom verifies usernames are labels, not identities.
func TestSameUsernameInRoom(t *testing.T) {
	env := startTestServer(t, nil)

	first := testhelpers.MustConnect(t, env.wsURL)
	second := testhelpers.MustConnect(t, env.wsURL)
	testhelpers.MustJoin(t, first, "lobby", "sam")
	testhelpers.MustJoin(t, second, "lobby", "sam")

	if err := testhelpers.SendChat(first, "which sam?"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		if msg := testhelpers.ReceiveChat(t, conn); msg.Message != "which sam?" {
			t.Errorf("received %+v", msg)
		}
	}
}
