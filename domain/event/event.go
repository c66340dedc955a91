// Package event defines the outbound frames pushed to connected clients.
package event

import (
	"time"

	"room-chat/domain"

	"github.com/samber/lo"
)

type Name string

const (
	RoomJoinedName Name = "room-joined"
	RoomLeftName   Name = "room-left"
	UserJoinedName Name = "user-joined"
	UserLeftName   Name = "user-left"
	MessageName    Name = "message"
	ErrorName      Name = "error"
)

// Event is serialized as-is on the wire; Command carries the frame discriminator.
type Event interface {
	Name() Name
}

type RoomInfo struct {
	ID   domain.RoomID `json:"id"`
	Name string        `json:"name"`
}

type MessagePayload struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	SenderID   domain.IdentityID `json:"senderId"`
	SenderName string            `json:"senderName"`
	CreatedAt  time.Time         `json:"createdAt"`
	RoomID     domain.RoomID     `json:"roomId"`
}

type RoomJoined struct {
	Command  Name             `json:"command"`
	Room     RoomInfo         `json:"room"`
	Messages []MessagePayload `json:"messages"`
}

func (RoomJoined) Name() Name { return RoomJoinedName }

type RoomLeft struct {
	Command Name          `json:"command"`
	RoomID  domain.RoomID `json:"roomId"`
}

func (RoomLeft) Name() Name { return RoomLeftName }

type UserJoined struct {
	Command  Name              `json:"command"`
	UserID   domain.IdentityID `json:"userId"`
	UserName string            `json:"userName"`
	RoomID   domain.RoomID     `json:"roomId"`
}

func (UserJoined) Name() Name { return UserJoinedName }

type UserLeft struct {
	Command  Name              `json:"command"`
	UserID   domain.IdentityID `json:"userId"`
	UserName string            `json:"userName"`
	RoomID   domain.RoomID     `json:"roomId"`
}

func (UserLeft) Name() Name { return UserLeftName }

type MessagePosted struct {
	Command Name           `json:"command"`
	Message MessagePayload `json:"message"`
}

func (MessagePosted) Name() Name { return MessageName }

type Error struct {
	Command Name   `json:"command"`
	Message string `json:"message"`
}

func (Error) Name() Name { return ErrorName }

// NewRoomJoined expects history oldest-first.
func NewRoomJoined(room domain.RoomRecord, history []domain.Message) RoomJoined {
	return RoomJoined{
		Command: RoomJoinedName,
		Room:    RoomInfo{ID: room.ID, Name: room.Name},
		// Never null on the wire
		Messages: append(make([]MessagePayload, 0, len(history)), lo.Map(history, func(m domain.Message, _ int) MessagePayload {
			return toPayload(m)
		})...),
	}
}

func NewRoomLeft(roomID domain.RoomID) RoomLeft {
	return RoomLeft{Command: RoomLeftName, RoomID: roomID}
}

func NewUserJoined(identity domain.Identity, roomID domain.RoomID) UserJoined {
	return UserJoined{Command: UserJoinedName, UserID: identity.ID, UserName: displayName(identity), RoomID: roomID}
}

func NewUserLeft(identity domain.Identity, roomID domain.RoomID) UserLeft {
	return UserLeft{Command: UserLeftName, UserID: identity.ID, UserName: displayName(identity), RoomID: roomID}
}

func NewMessagePosted(message domain.Message) MessagePosted {
	return MessagePosted{Command: MessageName, Message: toPayload(message)}
}

func NewError(message string) Error {
	return Error{Command: ErrorName, Message: message}
}

func toPayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:         m.ID.String(),
		Content:    m.Content,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		CreatedAt:  m.CreatedAt,
		RoomID:     m.RoomID,
	}
}

func displayName(identity domain.Identity) string {
	if identity.DisplayName == "" {
		return "Unknown"
	}
	return identity.DisplayName
}
