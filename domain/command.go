package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"room-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type CommandName string

const (
	CommandJoin    CommandName = "join"
	CommandLeave   CommandName = "leave"
	CommandMessage CommandName = "message"
)

// Older clients still send the long form.
var commandAliases = map[CommandName]CommandName{
	"join-room":  CommandJoin,
	"leave-room": CommandLeave,
}

// Command is anything routed to a single room.
type Command interface {
	RoomID() RoomID
}

// Envelope is the inbound JSON frame.
type Envelope struct {
	Command     CommandName `json:"command"`
	Token       string      `json:"token"`
	Room        RoomID      `json:"roomId"`
	Content     string      `json:"content,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	UserName    string      `json:"userName,omitempty"`
}

func (e Envelope) RoomID() RoomID { return e.Room }

// SenderName prefers the name sent with the frame over the one carried by the token.
func (e Envelope) SenderName(identity Identity) string {
	for _, name := range []string{e.DisplayName, e.UserName, identity.DisplayName} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			return trimmed
		}
	}
	return "Unknown"
}

// ParseEnvelope decodes a raw frame and normalizes command aliases.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err)
	}
	if canonical, ok := commandAliases[envelope.Command]; ok {
		envelope.Command = canonical
	}
	return envelope, nil
}

type roomRequest struct {
	Room string `validate:"required,max=128"`
}

type messageRequest struct {
	Room    string `validate:"required,max=128"`
	Content string `validate:"required"`
}

// Validate checks the per-command payload. The token is checked separately by the verifier.
func (e Envelope) Validate(maxContentLength int) error {
	switch e.Command {
	case CommandJoin, CommandLeave:
		if err := validate.Struct(roomRequest{Room: string(e.Room)}); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidEnvelope, err)
		}
	case CommandMessage:
		if err := validate.Struct(messageRequest{Room: string(e.Room), Content: strings.TrimSpace(e.Content)}); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidEnvelope, err)
		}
		if maxContentLength > 0 && len([]rune(e.Content)) > maxContentLength {
			return errors.ErrContentTooLong
		}
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownCommand, e.Command)
	}
	return nil
}
