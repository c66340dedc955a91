package storage

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"room-chat/domain"
	"room-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

// RoomRepository stores durable room records under "room:{id}" and keeps a
// "roomname:{name}" index so both ids and names stay unique.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

// CreateRoom persists a new room record. A zero CreatedAt is set to now.
func (r *RoomRepository) CreateRoom(ctx context.Context, record domain.RoomRecord) (domain.RoomRecord, error) {
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().UTC().UnixMilli()
	}
	if err := ctx.Err(); err != nil {
		return domain.RoomRecord{}, storeFailure(err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(record.ID)); err == nil {
			return errors.ErrRoomExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if _, err := txn.Get(roomNameKey(record.Name)); err == nil {
			return errors.ErrRoomNameTaken
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(roomKey(record.ID), marshalRoom(record)); err != nil {
			return err
		}
		return txn.Set(roomNameKey(record.Name), []byte(record.ID))
	})
	if err != nil {
		return domain.RoomRecord{}, storeFailure(err)
	}
	r.log.Debug("Room created", "room_id", record.ID, "name", record.Name)
	return record, nil
}

// FindRoom loads a room record, or returns ErrRoomNotFound.
func (r *RoomRepository) FindRoom(ctx context.Context, roomID domain.RoomID) (domain.RoomRecord, error) {
	var record domain.RoomRecord
	err := withContext(ctx, func() error {
		return r.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(roomKey(roomID))
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrRoomNotFound
			}
			if err != nil {
				return err
			}
			return item.Value(func(value []byte) error {
				record, err = unmarshalRoom(value)
				return err
			})
		})
	})
	if err != nil {
		return domain.RoomRecord{}, storeFailure(err)
	}
	return record, nil
}

func roomKey(id domain.RoomID) []byte {
	return []byte(RoomKeyPrefix + string(id))
}

func roomNameKey(name string) []byte {
	return []byte(RoomNameKeyPrefix + name)
}
