package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/domain/event"
	"room-chat/errors"

	"github.com/samber/lo"
)

// RoomWorker processes the commands of one room one at a time.
//
// Store I/O happens here, outside the registry lock. Because a room has a
// single worker, messages are broadcast in the order they were appended, and a
// joiner's history snapshot can neither miss nor duplicate a concurrent message.
type RoomWorker struct {
	room         domain.RoomID
	commands     <-chan domain.Command
	registry     *Registry
	store        contract.IMessageStore
	historyLimit int
	echoSender   bool
	log          *slog.Logger
}

func NewRoomWorker(room domain.RoomID, commands <-chan domain.Command, registry *Registry,
	store contract.IMessageStore, historyLimit int, echoSender bool, log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		room:         room,
		commands:     commands,
		registry:     registry,
		store:        store,
		historyLimit: historyLimit,
		echoSender:   echoSender,
		log:          log.With("room_id", room),
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				return nil
			}
			w.handle(cmd)
		}
	}
}

func (w *RoomWorker) handle(cmd domain.Command) {
	switch c := cmd.(type) {
	case JoinCommand:
		w.apply(c.request, func() error { return w.join(c) })
	case LeaveCommand:
		w.apply(c.request, func() error { return w.leave(c) })
	case PostMessageCommand:
		w.apply(c.request, func() error { return w.postMessage(c) })
	default:
		w.log.Warn("Unsupported room command", "command", fmt.Sprintf("%T", cmd))
	}
}

// apply runs fn only if the caller has not timed out first, and then always
// answers it, even when fn panics.
func (w *RoomWorker) apply(req request, fn func() error) {
	if !req.claim() {
		w.log.Debug("Command dropped, caller already timed out")
		return
	}
	replied := false
	defer func() {
		if !replied {
			req.reply(fmt.Errorf("%w: command aborted", errors.ErrWorkerPanic))
		}
	}()
	err := fn()
	replied = true
	req.reply(err)
}

func (w *RoomWorker) join(c JoinCommand) error {
	// The caller already gave up, applying it now would surprise everyone
	if err := c.ctx.Err(); err != nil {
		return storeError(err)
	}

	history, err := w.store.RecentHistory(c.ctx, c.Room.ID, w.historyLimit)
	if err != nil {
		return historyError(err)
	}
	// Most-recent-first from the store, replayed oldest-first
	history = lo.Reverse(history)

	added := w.registry.Join(c.Identity, c.Sink, c.Room, event.NewRoomJoined(c.Room, history))
	w.log.Debug("Identity joined", "user_id", c.Identity.ID, "new_member", added, "history", len(history))
	return nil
}

func (w *RoomWorker) leave(c LeaveCommand) error {
	if err := c.ctx.Err(); err != nil {
		return storeError(err)
	}
	_, err := w.registry.Leave(c.Identity.ID, c.Room)
	return err
}

func (w *RoomWorker) postMessage(c PostMessageCommand) error {
	if err := c.ctx.Err(); err != nil {
		return storeError(err)
	}
	if err := w.registry.CheckMember(c.Room, c.Identity.ID); err != nil {
		return err
	}

	message, err := w.store.Append(c.ctx, domain.Message{
		RoomID:     c.Room,
		SenderID:   c.Identity.ID,
		SenderName: c.SenderName,
		Content:    c.Content,
	})
	if err != nil {
		return storeError(err)
	}

	var exclude domain.IdentityID
	if !w.echoSender {
		exclude = c.Identity.ID
	}
	n := w.registry.Broadcast(c.Room, event.NewMessagePosted(message), exclude)
	w.log.Debug("Message broadcast", "user_id", c.Identity.ID, "message_id", message.ID, "targets", n)
	return nil
}

// historyError is storeError for the read done on join.
func historyError(err error) error {
	err = storeError(err)
	if stderrors.Is(err, errors.ErrStoreTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrHistoryUnavailable, err)
}

// storeError keeps the StoreError kind on anything coming back from the collaborator.
func storeError(err error) error {
	switch {
	case stderrors.Is(err, errors.ErrStore):
		return err
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", errors.ErrStoreTimeout, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
}
