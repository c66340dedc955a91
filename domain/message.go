// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once the store has assigned their ID and CreatedAt.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a persisted chat message.
type Message struct {
	ID         uuid.UUID // assigned by the store
	RoomID     RoomID
	SenderID   IdentityID
	SenderName string
	Content    string
	CreatedAt  time.Time // assigned by the store
}
