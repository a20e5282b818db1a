// Package server implements the room relay: a WebSocket endpoint whose
// connections join named rooms and broadcast chat messages to every member
// of their room.
//
// The Registry holds room membership and performs fan-out; the Hub owns the
// connection lifecycle; Client runs the per-socket read/write pumps. The
// remaining files cover configuration, origin checks, routing and the HTTP
// server wrapper.
package server
