// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for /ws. It accepts only GET,
// upgrades the connection and registers a new Client with hub; the hub
// starts the client's read/write pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if !hub.registerClient(client) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "yapper server is running!")
}

// TestPageHandler serves an HTML page that joins a room and chats over /ws.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		log.Warn().Err(err).Msg("write test page")
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>yapper room test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        .error { color: #721c24; }
        .chat { color: #155724; }
    </style>
</head>
<body>
    <h1>yapper room test</h1>

    <div>
        <input type="text" id="room" placeholder="room" value="lobby">
        <input type="text" id="username" placeholder="username">
        <button id="joinButton" onclick="join()">Join</button>
    </div>
    <div>
        <input type="text" id="message" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendChat()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        const messages = document.getElementById('messages');
        const messageInput = document.getElementById('message');
        const sendButton = document.getElementById('sendButton');
        let ws = null;

        function show(text, cls) {
            const el = document.createElement('div');
            el.className = cls || '';
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function join() {
            const roomId = document.getElementById('room').value;
            const username = document.getElementById('username').value;
            if (ws) { ws.close(); }
            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onopen = function() {
                ws.send(JSON.stringify({ type: 'join', payload: { roomId: roomId, username: username } }));
                messageInput.disabled = false;
                sendButton.disabled = false;
                show('joined ' + roomId + ' as ' + username);
            };
            ws.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                if (msg.error) {
                    show('error: ' + msg.error, 'error');
                } else {
                    show(msg.username + ': ' + msg.message, 'chat');
                }
            };
            ws.onclose = function() {
                show('connection closed');
                messageInput.disabled = true;
                sendButton.disabled = true;
            };
        }

        function sendChat() {
            const text = messageInput.value;
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ type: 'chat', payload: { message: text } }));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendChat(); }
        });
    </script>
</body>
</html>`
