package storage

import (
	"context"
	"log/slog"
	"testing"

	"room-chat/domain"
	"room-chat/errors"

	"github.com/stretchr/testify/require"
)

func Test_CreateRoom_And_FindRoom(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	// Given a new room
	created, err := repository.CreateRoom(ctx, domain.RoomRecord{ID: "general", Name: "General", Admin: "alice"})
	req.NoError(err)
	req.NotZero(created.CreatedAt)

	// When looking it up
	found, err := repository.FindRoom(ctx, "general")

	// Then the record round-trips
	req.NoError(err)
	req.Equal(created, found)
}

func Test_CreateRoom_Duplicates(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	_, err := repository.CreateRoom(ctx, domain.RoomRecord{ID: "general", Name: "General", Admin: "alice"})
	req.NoError(err)

	t.Run("same id", func(t *testing.T) {
		_, err := repository.CreateRoom(ctx, domain.RoomRecord{ID: "general", Name: "Other", Admin: "bob"})
		require.ErrorIs(t, err, errors.ErrRoomExists)
	})

	t.Run("same name", func(t *testing.T) {
		_, err := repository.CreateRoom(ctx, domain.RoomRecord{ID: "other", Name: "General", Admin: "bob"})
		require.ErrorIs(t, err, errors.ErrRoomNameTaken)
	})
}

func Test_FindRoom_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	_, err := repository.FindRoom(context.Background(), "missing")

	req.ErrorIs(err, errors.ErrRoomNotFound)
}
