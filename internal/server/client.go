// Package server manages individual WebSocket clients, handling read/write
// pumps, frame dispatch, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client represents one WebSocket connection in the relay. It owns the
// socket and a bounded queue of outbound frames drained by writePump.
type Client struct {
	id             ConnID
	conn           *websocket.Conn
	hub            *Hub
	addr           string
	log            zerolog.Logger
	maxMessageSize int64

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient creates a new Client with a fresh identity for the provided
// WebSocket connection. conn may be nil in tests that drive the client
// without a socket.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := NewConnID()
	return &Client{
		id:             id,
		conn:           conn,
		hub:            hub,
		addr:           addr,
		log:            hub.log.With().Str("conn", string(id)).Str("addr", addr).Logger(),
		maxMessageSize: cfg.MaxMessageSize,
		send:           make(chan []byte, cfg.SendBufferSize),
	}
}

// ID returns the connection identity used as the registry key.
func (c *Client) ID() ConnID {
	return c.id
}

// Send queues payload for the write pump without blocking. It fails with
// ErrSendBufferFull when the peer is not keeping up and ErrConnectionClosed
// once the client has been unregistered.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// closeSend marks the client closed and closes its queue, which makes the
// write pump send a close frame and exit. Safe to call more than once.
func (c *Client) closeSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// handleMessage decodes one inbound frame and applies it to the registry.
// Every failure is answered to this client only.
func (c *Client) handleMessage(raw []byte) {
	if err := c.dispatch(raw); err != nil {
		c.reject(err)
	}
}

func (c *Client) dispatch(raw []byte) error {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}

	switch env.Type {
	case TypeJoin:
		var p JoinPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		return c.hub.registry.Join(c, p.RoomID, p.Username)

	case TypeChat:
		var p ChatPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		_, err := c.hub.registry.Broadcast(c.id, p.Message)
		return err

	default:
		c.log.Debug().Str("type", env.Type).Msg("unknown message type")
		return newRequestError(ErrUnknownType, reasonUnknownType)
	}
}

// reject answers a failed frame with an error envelope.
func (c *Client) reject(err error) {
	kind := errorKind(err)
	c.hub.metrics.RequestError(kind)
	c.log.Debug().Err(err).Str("kind", kind).Msg("rejected frame")

	payload, mErr := json.Marshal(ErrorMessage{Error: errorReason(err)})
	if mErr != nil {
		c.log.Error().Err(mErr).Msg("encode error response")
		return
	}
	if sErr := c.Send(payload); sErr != nil {
		c.log.Warn().Err(sErr).Msg("could not queue error response")
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("set initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("set read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching its cause.
// Any read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.maxMessageSize).Msg("frame exceeded maximum size")

	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived):
		c.log.Info().Err(err).Msg("client disconnected")

	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info().Err(err).Msg("connection closed")

	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Warn().Err(err).Msg("unexpected websocket close")

	default:
		c.log.Warn().Err(err).Msg("websocket read error")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("close connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessageWrite(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn().Err(err).Msg("close connection in writePump")
	}
}

// handleMessageWrite writes one queued frame and returns false if the
// connection should be closed. Each envelope is its own text frame.
func (c *Client) handleMessageWrite(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("set write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("write message")
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Warn().Err(err).Msg("write close message")
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("set write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn().Err(err).Msg("write ping")
		return false
	}
	return true
}
