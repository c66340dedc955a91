package client

import (
	"encoding/json"
	"time"
)

// Outbound command names sent by the server.
const (
	RoomJoined = "room-joined"
	RoomLeft   = "room-left"
	UserJoined = "user-joined"
	UserLeft   = "user-left"
	Message    = "message"
	Error      = "error"
)

type Inbound struct {
	Command     string `json:"command"`
	Token       string `json:"token"`
	RoomID      string `json:"roomId"`
	Content     string `json:"content,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type RoomInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
	RoomID     string    `json:"roomId"`
}

// Outbound is any frame pushed by the server. Which fields are set depends on Command.
type Outbound struct {
	Command  string          `json:"command"`
	Room     *RoomInfo       `json:"room,omitempty"`
	Messages []ChatMessage   `json:"messages,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	UserName string          `json:"userName,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	Raw      json.RawMessage `json:"message,omitempty"`
}

// ChatMessage decodes the payload of a `message` frame.
func (o Outbound) ChatMessage() (ChatMessage, bool) {
	var m ChatMessage
	if o.Command != Message || json.Unmarshal(o.Raw, &m) != nil {
		return ChatMessage{}, false
	}
	return m, true
}

// ErrorText decodes the text of an `error` frame.
func (o Outbound) ErrorText() string {
	var text string
	if o.Command != Error || json.Unmarshal(o.Raw, &text) != nil {
		return ""
	}
	return text
}
