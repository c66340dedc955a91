package runtime

import "room-chat/domain"

// RoomRegistry maps room ids to their in-memory membership.
// It is not safe for concurrent use: Registry serializes access.
type RoomRegistry struct {
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[domain.RoomID]*domain.Room)}
}

// Ensure is idempotent on roomID; the display name of an existing room is kept.
func (r *RoomRegistry) Ensure(roomID domain.RoomID, displayName string) *domain.Room {
	if room, ok := r.rooms[roomID]; ok {
		return room
	}
	room := domain.NewRoom(roomID, displayName)
	r.rooms[roomID] = room
	return room
}

// AddMember returns true only when the identity was not a member yet.
func (r *RoomRegistry) AddMember(roomID domain.RoomID, id domain.IdentityID) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	return room.AddMember(id)
}

// RemoveMember returns true only when the identity was a member.
func (r *RoomRegistry) RemoveMember(roomID domain.RoomID, id domain.IdentityID) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	return room.RemoveMember(id)
}

func (r *RoomRegistry) Find(roomID domain.RoomID) (*domain.Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}
