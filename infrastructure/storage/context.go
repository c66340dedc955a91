package storage

import (
	"context"
	stderrors "errors"
	"fmt"

	"room-chat/errors"
)

// withContext runs a blocking badger read and gives up when ctx ends first.
// The call itself keeps running to completion in the background, so it must
// never be used for writes.
func withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// storeFailure classifies a storage error for the client-facing layer.
func storeFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", errors.ErrStoreTimeout, err)
	case stderrors.Is(err, errors.ErrStore),
		stderrors.Is(err, errors.ErrRoomNotFound),
		stderrors.Is(err, errors.ErrRoomExists),
		stderrors.Is(err, errors.ErrRoomNameTaken):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
}
