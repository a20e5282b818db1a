// Package server tracks room membership for live connections and fans chat
// messages out to the members of a room through the Registry type.
package server

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tarun2000/yapper-BE/internal/metrics"
)

// ConnID identifies one socket for its whole lifetime.
type ConnID string

// NewConnID returns a fresh random identity.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Member is the registry's view of a connection: an identity and a way to
// hand it an outbound frame. Send must not block on the network.
type Member interface {
	ID() ConnID
	Send(payload []byte) error
}

// Membership is a snapshot of one registry entry.
type Membership struct {
	ID       ConnID
	Room     string
	Username string
}

// DeliveryFailure records a member whose Send failed during a broadcast.
type DeliveryFailure struct {
	ID  ConnID
	Err error
}

// DeliveryReport summarises one broadcast.
type DeliveryReport struct {
	Room      string
	Targeted  int
	Delivered int
	Failed    int
	Failures  []DeliveryFailure
}

// entry is immutable once stored; a re-join replaces it.
type entry struct {
	Membership
	member Member
}

// Registry maps connections to their room and username and answers
// room-scoped broadcasts. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byConn map[ConnID]*entry
	byRoom map[string]map[ConnID]*entry

	log     zerolog.Logger
	metrics *metrics.Metrics

	failLog    *rate.Limiter
	suppressed atomic.Int64
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(log zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		byConn:  make(map[ConnID]*entry),
		byRoom:  make(map[string]map[ConnID]*entry),
		log:     log,
		metrics: m,
		failLog: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// Join places m in roomID under username. Joining again moves the
// connection to the new room and name.
func (r *Registry) Join(m Member, roomID, username string) error {
	if roomID == "" || username == "" {
		return newRequestError(ErrValidation, reasonJoinFields)
	}

	id := m.ID()
	e := &entry{
		Membership: Membership{ID: id, Room: roomID, Username: username},
		member:     m,
	}

	r.mu.Lock()
	prev, rejoin := r.byConn[id]
	if rejoin {
		r.removeLocked(prev)
	}
	r.byConn[id] = e
	room, ok := r.byRoom[roomID]
	if !ok {
		room = make(map[ConnID]*entry)
		r.byRoom[roomID] = room
	}
	room[id] = e
	roomSize := len(room)
	r.metrics.SetMembership(len(r.byConn), len(r.byRoom))
	r.mu.Unlock()

	ev := r.log.Info().
		Str("conn", string(id)).
		Str("room", roomID).
		Str("username", username).
		Int("room_size", roomSize)
	if rejoin {
		ev = ev.Str("previous_room", prev.Room)
	}
	ev.Msg("member joined")
	return nil
}

// Broadcast delivers message from id to every member of id's room,
// including id itself. Per-member failures are reported, not returned.
func (r *Registry) Broadcast(id ConnID, message string) (DeliveryReport, error) {
	r.mu.RLock()
	sender, ok := r.byConn[id]
	if !ok {
		r.mu.RUnlock()
		return DeliveryReport{}, newRequestError(ErrNotJoined, reasonNotJoined)
	}
	if message == "" {
		r.mu.RUnlock()
		return DeliveryReport{}, newRequestError(ErrValidation, reasonMessageRequired)
	}
	targets := make([]*entry, 0, len(r.byRoom[sender.Room]))
	for _, e := range r.byRoom[sender.Room] {
		targets = append(targets, e)
	}
	r.mu.RUnlock()

	payload, err := json.Marshal(ChatMessage{Username: sender.Username, Message: message})
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("encode chat message: %w", err)
	}

	report := DeliveryReport{Room: sender.Room, Targeted: len(targets)}
	for _, e := range targets {
		if err := e.member.Send(payload); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, DeliveryFailure{ID: e.ID, Err: err})
			r.logDeliveryFailure(e.Membership, err)
			continue
		}
		report.Delivered++
	}
	r.metrics.ObserveBroadcast(report.Delivered, report.Failed)

	r.log.Debug().
		Str("conn", string(id)).
		Str("room", report.Room).
		Str("username", sender.Username).
		Int("targeted", report.Targeted).
		Int("failed", report.Failed).
		Msg("message broadcast")
	return report, nil
}

// Leave drops id from the registry. Unknown ids are ignored.
func (r *Registry) Leave(id ConnID) {
	r.mu.Lock()
	e, ok := r.byConn[id]
	if ok {
		r.removeLocked(e)
		r.metrics.SetMembership(len(r.byConn), len(r.byRoom))
	}
	r.mu.Unlock()

	if ok {
		r.log.Info().
			Str("conn", string(id)).
			Str("room", e.Room).
			Str("username", e.Username).
			Msg("member left")
	}
}

// Lookup returns the membership of id, if it has joined.
func (r *Registry) Lookup(id ConnID) (Membership, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byConn[id]
	if !ok {
		return Membership{}, false
	}
	return e.Membership, true
}

// Members returns the current members of room ordered by username.
func (r *Registry) Members(room string) []Membership {
	r.mu.RLock()
	out := make([]Membership, 0, len(r.byRoom[room]))
	for _, e := range r.byRoom[room] {
		out = append(out, e.Membership)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Membership) int {
		return cmp.Or(cmp.Compare(a.Username, b.Username), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Len reports the number of joined connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// RoomCount reports the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom)
}

func (r *Registry) removeLocked(e *entry) {
	delete(r.byConn, e.ID)
	if room, ok := r.byRoom[e.Room]; ok {
		delete(room, e.ID)
		if len(room) == 0 {
			delete(r.byRoom, e.Room)
		}
	}
}

// logDeliveryFailure warns about a failed send, throttled so a stuck room
// cannot flood the log.
func (r *Registry) logDeliveryFailure(m Membership, err error) {
	if !r.failLog.Allow() {
		r.suppressed.Add(1)
		return
	}

	ev := r.log.Warn().
		Err(err).
		Str("conn", string(m.ID)).
		Str("room", m.Room).
		Str("username", m.Username)
	if n := r.suppressed.Swap(0); n > 0 {
		ev = ev.Int64("suppressed", n)
	}
	ev.Msg("delivery failed")
}
