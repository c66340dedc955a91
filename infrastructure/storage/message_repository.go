package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"room-chat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// MessageRepository persists chat messages in BadgerDB.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu     sync.Mutex
	lastAt map[domain.RoomID]time.Time
	now    func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		log:    log,
		lastAt: make(map[domain.RoomID]time.Time),
		now:    time.Now,
	}
}

// Append assigns the message its identifier and timestamp, then stores it.
// The key is "msg:{hex(room)}:{timestamp_padded}:{uuid}":
//  1. The hex room segment keeps room ids containing ':' from sharing a prefix.
//  2. The 19-digit zero padding keeps lexicographical order chronological.
//  3. Timestamps are strictly increasing per room, so two messages appended in
//     the same nanosecond still come back in append order.
func (m *MessageRepository) Append(ctx context.Context, draft domain.Message) (domain.Message, error) {
	// A write is never abandoned half way: once started it runs to the end and
	// its real outcome is returned, even past the deadline.
	if err := ctx.Err(); err != nil {
		return domain.Message{}, storeFailure(err)
	}

	message := draft
	message.ID = uuid.New()
	message.CreatedAt = m.nextTimestamp(draft.RoomID)

	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), marshalMessage(message))
	})
	if err != nil {
		return domain.Message{}, storeFailure(err)
	}
	return message, nil
}

// RecentHistory returns up to limit messages of a room, newest first.
func (m *MessageRepository) RecentHistory(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}

	var messages []domain.Message
	err := withContext(ctx, func() error {
		return m.db.View(func(txn *badger.Txn) error {
			prefix := messagePrefix(roomID)
			options := badger.DefaultIteratorOptions
			options.Reverse = true
			options.Prefix = prefix
			options.PrefetchSize = limit
			it := txn.NewIterator(options)
			defer it.Close()

			// Reverse iteration seeks to the last key <= seek, so start past every timestamp
			seek := append(append([]byte{}, prefix...), 0xff)
			for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
				if len(messages) == limit {
					m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
					break
				}
				err := it.Item().Value(func(value []byte) error {
					message, err := unmarshalMessage(value)
					if err != nil {
						return err
					}
					messages = append(messages, message)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, storeFailure(err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

func (m *MessageRepository) nextTimestamp(roomID domain.RoomID) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.now().UTC()
	if last, ok := m.lastAt[roomID]; ok && !at.After(last) {
		at = last.Add(time.Nanosecond)
	}
	m.lastAt[roomID] = at
	return at
}

func messagePrefix(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("%s%s:", MessageKeyPrefix, hex.EncodeToString([]byte(roomID))))
}

func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s",
		MessageKeyPrefix,
		hex.EncodeToString([]byte(message.RoomID)),
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}
