package storage

import (
	"fmt"
	"time"

	"room-chat/domain"
	"room-chat/errors"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format so they stay readable by any
// protobuf tooling and tolerate added fields.
//
//	message Message { string id = 1; string room = 2; string sender_id = 3;
//	                  string sender_name = 4; string content = 5; int64 at = 6; }
//	message Room    { string id = 1; string name = 2; string admin = 3; int64 created_at = 4; }
const (
	fieldMessageID         protowire.Number = 1
	fieldMessageRoom       protowire.Number = 2
	fieldMessageSenderID   protowire.Number = 3
	fieldMessageSenderName protowire.Number = 4
	fieldMessageContent    protowire.Number = 5
	fieldMessageAt         protowire.Number = 6

	fieldRoomID        protowire.Number = 1
	fieldRoomName      protowire.Number = 2
	fieldRoomAdmin     protowire.Number = 3
	fieldRoomCreatedAt protowire.Number = 4
)

func marshalMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, fieldMessageID, m.ID.String())
	b = appendString(b, fieldMessageRoom, string(m.RoomID))
	b = appendString(b, fieldMessageSenderID, string(m.SenderID))
	b = appendString(b, fieldMessageSenderName, m.SenderName)
	b = appendString(b, fieldMessageContent, m.Content)
	b = protowire.AppendTag(b, fieldMessageAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	return b
}

func unmarshalMessage(b []byte) (domain.Message, error) {
	var (
		m  domain.Message
		id string
	)
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case typ == protowire.BytesType && num == fieldMessageID:
			return consumeString(field, &id)
		case typ == protowire.BytesType && num == fieldMessageRoom:
			var room string
			n, err := consumeString(field, &room)
			m.RoomID = domain.RoomID(room)
			return n, err
		case typ == protowire.BytesType && num == fieldMessageSenderID:
			var sender string
			n, err := consumeString(field, &sender)
			m.SenderID = domain.IdentityID(sender)
			return n, err
		case typ == protowire.BytesType && num == fieldMessageSenderName:
			return consumeString(field, &m.SenderName)
		case typ == protowire.BytesType && num == fieldMessageContent:
			return consumeString(field, &m.Content)
		case typ == protowire.VarintType && num == fieldMessageAt:
			v, n := protowire.ConsumeVarint(field)
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
			return n, protowire.ParseError(n)
		default:
			n := protowire.ConsumeFieldValue(num, typ, field)
			return n, protowire.ParseError(n)
		}
	})
	if err != nil {
		return domain.Message{}, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: message id: %v", errors.ErrCorruptedRecord, err)
	}
	m.ID = parsedID
	return m, nil
}

func marshalRoom(r domain.RoomRecord) []byte {
	var b []byte
	b = appendString(b, fieldRoomID, string(r.ID))
	b = appendString(b, fieldRoomName, r.Name)
	b = appendString(b, fieldRoomAdmin, string(r.Admin))
	b = protowire.AppendTag(b, fieldRoomCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.CreatedAt))
	return b
}

func unmarshalRoom(b []byte) (domain.RoomRecord, error) {
	var r domain.RoomRecord
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case typ == protowire.BytesType && num == fieldRoomID:
			var id string
			n, err := consumeString(field, &id)
			r.ID = domain.RoomID(id)
			return n, err
		case typ == protowire.BytesType && num == fieldRoomName:
			return consumeString(field, &r.Name)
		case typ == protowire.BytesType && num == fieldRoomAdmin:
			var admin string
			n, err := consumeString(field, &admin)
			r.Admin = domain.IdentityID(admin)
			return n, err
		case typ == protowire.VarintType && num == fieldRoomCreatedAt:
			v, n := protowire.ConsumeVarint(field)
			r.CreatedAt = int64(v)
			return n, protowire.ParseError(n)
		default:
			n := protowire.ConsumeFieldValue(num, typ, field)
			return n, protowire.ParseError(n)
		}
	})
	return r, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func consumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

// consumeFields walks a wire-format record; fn consumes one field value and
// returns how many bytes it used.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, protowire.ParseError(n))
		}
		b = b[n:]
		used, err := fn(num, typ, b)
		if err != nil || used < 0 {
			return fmt.Errorf("%w: field %d: %v", errors.ErrCorruptedRecord, num, err)
		}
		b = b[used:]
	}
	return nil
}

// Key prefixes of each record kind.
const (
	MessageKeyPrefix  = "msg:"
	RoomKeyPrefix     = "room:"
	RoomNameKeyPrefix = "roomname:"
)

// DecodeMessage reads a value stored under MessageKeyPrefix.
func DecodeMessage(value []byte) (domain.Message, error) {
	return unmarshalMessage(value)
}

// DecodeRoom reads a value stored under RoomKeyPrefix.
func DecodeRoom(value []byte) (domain.RoomRecord, error) {
	return unmarshalRoom(value)
}
