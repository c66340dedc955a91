package domain

type RoomID string

// Room is the in-memory routing view of a durable room record.
// Members only ever contains identities the registry has tracked.
type Room struct {
	ID          RoomID
	DisplayName string
	members     Set[IdentityID]
}

func NewRoom(id RoomID, displayName string) *Room {
	return &Room{
		ID:          id,
		DisplayName: displayName,
		members:     make(Set[IdentityID]),
	}
}

// AddMember returns false when the identity was already a member.
func (r *Room) AddMember(id IdentityID) bool {
	return r.members.Add(id)
}

// RemoveMember returns false when the identity was not a member.
func (r *Room) RemoveMember(id IdentityID) bool {
	return r.members.Remove(id)
}

func (r *Room) HasMember(id IdentityID) bool {
	return r.members.Has(id)
}

func (r *Room) Members() []IdentityID {
	return r.members.Keys()
}

func (r *Room) Size() int {
	return len(r.members)
}

// RoomRecord is the durable room as known by the room store.
type RoomRecord struct {
	ID        RoomID
	Name      string
	Admin     IdentityID
	CreatedAt int64
}
