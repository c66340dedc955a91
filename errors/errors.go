package errors

import (
	stderrors "errors"
	"fmt"
)

// Kinds. Every error below wraps exactly one of them.
var (
	ErrAuth     = fmt.Errorf("auth error")
	ErrNotFound = fmt.Errorf("not found")
	ErrStore    = fmt.Errorf("store error")
	ErrProtocol = fmt.Errorf("protocol error")
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrMissingToken = fmt.Errorf("%w: token is required", ErrAuth)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrAuth)
	ErrExpiredToken = fmt.Errorf("%w: expired token", ErrAuth)

	ErrRoomNotFound     = fmt.Errorf("%w: room not found", ErrNotFound)
	ErrNotMember        = fmt.Errorf("%w: not a member of this room", ErrNotFound)
	ErrIdentityNotFound = fmt.Errorf("%w: user not found", ErrNotFound)

	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrStore)
	ErrStoreTimeout     = fmt.Errorf("%w: store timeout", ErrStore)
	ErrRoomExists       = fmt.Errorf("%w: room already exists", ErrStore)
	ErrRoomNameTaken    = fmt.Errorf("%w: room name already exists", ErrStore)
	ErrCorruptedRecord  = fmt.Errorf("%w: corrupted record", ErrStore)

	ErrHistoryUnavailable = fmt.Errorf("%w: history unavailable", ErrStore)

	ErrUnknownCommand    = fmt.Errorf("%w: unknown command", ErrProtocol)
	ErrMalformedEnvelope = fmt.Errorf("%w: malformed envelope", ErrProtocol)
	ErrInvalidEnvelope   = fmt.Errorf("%w: invalid envelope", ErrProtocol)
	ErrContentTooLong    = fmt.Errorf("%w: message too long", ErrProtocol)
	ErrRoomBusy          = fmt.Errorf("%w: room is busy", ErrProtocol)
)

// ToClientMessage maps an error to the text carried by an `error` reply.
// Internal details never leak to the client.
func ToClientMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrMissingToken):
		return "Token is required"
	case stderrors.Is(err, ErrExpiredToken):
		return "Token expired"
	case stderrors.Is(err, ErrAuth):
		return "Invalid token"
	case stderrors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case stderrors.Is(err, ErrNotMember):
		return "Not a member of this room"
	case stderrors.Is(err, ErrNotFound):
		return "User not found"
	case stderrors.Is(err, ErrStoreTimeout):
		return "Request timed out"
	case stderrors.Is(err, ErrHistoryUnavailable):
		return "Failed to load room history"
	case stderrors.Is(err, ErrStore):
		return "Failed to save message"
	case stderrors.Is(err, ErrUnknownCommand):
		return "Unknown command"
	case stderrors.Is(err, ErrContentTooLong):
		return "Message too long"
	case stderrors.Is(err, ErrRoomBusy):
		return "Room is busy, retry later"
	case stderrors.Is(err, ErrProtocol):
		return "Malformed request"
	default:
		return "Internal server error"
	}
}

// Kind returns the kind sentinel wrapped by err, used as a metric label.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stderrors.Is(err, ErrAuth):
		return "auth"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrStore):
		return "store"
	case stderrors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "internal"
	}
}
