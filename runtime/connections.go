package runtime

import (
	"room-chat/contract"
	"room-chat/domain"
)

// Connection binds an Identity to its current transport handle.
type Connection struct {
	Identity domain.Identity
	Sink     contract.EventSink
	memberOf domain.Set[domain.RoomID]
}

func (c *Connection) IsMemberOf(roomID domain.RoomID) bool {
	return c.memberOf.Has(roomID)
}

func (c *Connection) Rooms() []domain.RoomID {
	return c.memberOf.Keys()
}

// ConnectionRegistry maps identities to their single live connection.
// It is not safe for concurrent use: Registry serializes access.
type ConnectionRegistry struct {
	byIdentity map[domain.IdentityID]*Connection
	bySink     map[contract.EventSink]domain.Set[domain.IdentityID]
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		byIdentity: make(map[domain.IdentityID]*Connection),
		bySink:     make(map[contract.EventSink]domain.Set[domain.IdentityID]),
	}
}

// Upsert creates the connection or swaps its transport in place, keeping memberOf.
// The superseded sink is returned when it differs from the new one.
func (r *ConnectionRegistry) Upsert(identity domain.Identity, sink contract.EventSink) (*Connection, contract.EventSink) {
	conn, ok := r.byIdentity[identity.ID]
	if !ok {
		conn = &Connection{Identity: identity, Sink: sink, memberOf: make(domain.Set[domain.RoomID])}
		r.byIdentity[identity.ID] = conn
		r.bind(sink, identity.ID)
		return conn, nil
	}

	if identity.DisplayName != "" {
		conn.Identity.DisplayName = identity.DisplayName
	}
	if conn.Sink == sink {
		return conn, nil
	}
	stale := conn.Sink
	r.unbind(stale, identity.ID)
	conn.Sink = sink
	r.bind(sink, identity.ID)
	return conn, stale
}

func (r *ConnectionRegistry) Find(id domain.IdentityID) (*Connection, bool) {
	conn, ok := r.byIdentity[id]
	return conn, ok
}

func (r *ConnectionRegistry) Remove(id domain.IdentityID) {
	conn, ok := r.byIdentity[id]
	if !ok {
		return
	}
	r.unbind(conn.Sink, id)
	delete(r.byIdentity, id)
}

// BoundTo lists the identities whose current transport is sink.
func (r *ConnectionRegistry) BoundTo(sink contract.EventSink) []domain.IdentityID {
	return r.bySink[sink].Keys()
}

func (r *ConnectionRegistry) Len() int {
	return len(r.byIdentity)
}

func (r *ConnectionRegistry) bind(sink contract.EventSink, id domain.IdentityID) {
	ids, ok := r.bySink[sink]
	if !ok {
		ids = make(domain.Set[domain.IdentityID])
		r.bySink[sink] = ids
	}
	ids.Add(id)
}

func (r *ConnectionRegistry) unbind(sink contract.EventSink, id domain.IdentityID) {
	ids, ok := r.bySink[sink]
	if !ok {
		return
	}
	ids.Remove(id)
	if len(ids) == 0 {
		delete(r.bySink, sink)
	}
}
