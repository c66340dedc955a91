package runtime

import (
	"log/slog"
	"sync"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/domain/event"
	"room-chat/errors"
	"room-chat/observability"
)

// Registry guards the Connection Registry and the Room Registry with a single lock.
//
// Every composite mutation (room membership mirrored into the connection's
// memberOf) runs under that lock together with the enqueue of the events it
// produces, so no command ever observes a half-applied membership change.
// Enqueueing never blocks, so the lock is never held across I/O.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	metrics     *observability.Metrics
	connections *ConnectionRegistry
	rooms       *RoomRegistry
	broadcaster Broadcaster
	closeStale  bool
}

func NewRegistry(log *slog.Logger, metrics *observability.Metrics, closeStale bool) *Registry {
	return &Registry{
		log:         log,
		metrics:     metrics,
		connections: NewConnectionRegistry(),
		rooms:       NewRoomRegistry(),
		broadcaster: NewBroadcaster(log, metrics),
		closeStale:  closeStale,
	}
}

// Join upserts the connection, adds it to the room and notifies.
// The joiner receives joined; other members receive user-joined unless the
// identity was already a member. Returns whether the membership is new.
func (r *Registry) Join(identity domain.Identity, sink contract.EventSink, room domain.RoomRecord, joined event.Event) bool {
	added, stale := r.join(identity, sink, room, joined)
	if stale != nil {
		r.log.Info("Transport superseded by a reconnection", "user_id", identity.ID, "close", r.closeStale)
		if r.closeStale {
			_ = stale.Close()
		}
	}
	return added
}

// join applies the membership under the lock and returns the superseded sink, if any.
func (r *Registry) join(identity domain.Identity, sink contract.EventSink, room domain.RoomRecord, joined event.Event) (bool, contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, stale := r.connections.Upsert(identity, sink)
	target := r.rooms.Ensure(room.ID, room.Name)
	added := r.rooms.AddMember(room.ID, identity.ID)
	conn.memberOf.Add(room.ID)

	r.broadcaster.Send(conn, joined)
	if added {
		others := r.broadcaster.Targets(target, r.connections, identity.ID)
		r.broadcaster.Deliver(room.ID, others, event.NewUserJoined(conn.Identity, room.ID))
	}
	r.updateGauges()
	return added, stale
}

// Leave removes the identity from the room and notifies the remaining members.
func (r *Registry) Leave(identityID domain.IdentityID, roomID domain.RoomID) (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms.Find(roomID)
	if !ok {
		return domain.Identity{}, errors.ErrRoomNotFound
	}
	conn, ok := r.connections.Find(identityID)
	if !ok || !room.HasMember(identityID) {
		return domain.Identity{}, errors.ErrNotMember
	}

	r.evict(conn, room)
	return conn.Identity, nil
}

// Disconnect treats the loss of sink as an implicit leave from every room, for
// every identity whose current transport it is. A superseded sink owns no
// identity anymore, so its disconnect changes nothing.
func (r *Registry) Disconnect(sink contract.EventSink) []domain.IdentityID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.connections.BoundTo(sink)
	for _, id := range ids {
		conn, ok := r.connections.Find(id)
		if !ok {
			continue
		}
		for _, roomID := range conn.Rooms() {
			if room, ok := r.rooms.Find(roomID); ok {
				r.evict(conn, room)
			}
		}
		r.connections.Remove(id)
		r.log.Debug("Connection removed", "user_id", id)
	}
	r.updateGauges()
	return ids
}

// Broadcast sends evt to the live members of roomID, except exclude.
// Returns the number of transports addressed.
func (r *Registry) Broadcast(roomID domain.RoomID, evt event.Event, exclude domain.IdentityID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms.Find(roomID)
	if !ok {
		return 0
	}
	targets := r.broadcaster.Targets(room, r.connections, exclude)
	r.broadcaster.Deliver(roomID, targets, evt)
	return len(targets)
}

// CheckMember returns ErrRoomNotFound or ErrNotMember, or nil for a current member.
func (r *Registry) CheckMember(roomID domain.RoomID, identityID domain.IdentityID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms.Find(roomID)
	if !ok {
		return errors.ErrRoomNotFound
	}
	if !room.HasMember(identityID) {
		return errors.ErrNotMember
	}
	return nil
}

func (r *Registry) RoomExists(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms.Find(roomID)
	return ok
}

// Members returns a copy of the room membership.
func (r *Registry) Members(roomID domain.RoomID) []domain.IdentityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms.Find(roomID)
	if !ok {
		return nil
	}
	return room.Members()
}

// RoomsOf returns a copy of the rooms the identity's connection belongs to.
func (r *Registry) RoomsOf(identityID domain.IdentityID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections.Find(identityID)
	if !ok {
		return nil
	}
	return conn.Rooms()
}

// SinkOf returns the transport currently addressed for the identity.
func (r *Registry) SinkOf(identityID domain.IdentityID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections.Find(identityID)
	if !ok {
		return nil, false
	}
	return conn.Sink, true
}

type Stats struct {
	Connections int
	Rooms       int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Connections: r.connections.Len(), Rooms: r.rooms.Len()}
}

// evict must be called with the write lock held.
func (r *Registry) evict(conn *Connection, room *domain.Room) {
	r.rooms.RemoveMember(room.ID, conn.Identity.ID)
	conn.memberOf.Remove(room.ID)
	remaining := r.broadcaster.Targets(room, r.connections, conn.Identity.ID)
	r.broadcaster.Deliver(room.ID, remaining, event.NewUserLeft(conn.Identity, room.ID))
}

func (r *Registry) updateGauges() {
	r.metrics.Connections.Set(float64(r.connections.Len()))
	r.metrics.Rooms.Set(float64(r.rooms.Len()))
}
