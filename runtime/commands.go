package runtime

import (
	"context"
	"sync/atomic"

	"room-chat/contract"
	"room-chat/domain"
)

// request carries the caller's deadline and a one-shot reply slot.
// The reply channel is buffered so a worker never blocks on a caller that gave up.
//
// Exactly one side owns the outcome: the worker when it claims the request
// before touching anything, or the caller when it claims it on timeout. A
// request claimed by the caller is dropped by the worker without side effects.
type request struct {
	ctx    context.Context
	result chan error
	owner  *atomic.Bool
}

func newRequest(ctx context.Context) request {
	return request{ctx: ctx, result: make(chan error, 1), owner: &atomic.Bool{}}
}

// claim returns true for the first caller only.
func (r request) claim() bool {
	return r.owner.CompareAndSwap(false, true)
}

func (r request) reply(err error) {
	r.result <- err
}

type JoinCommand struct {
	request
	Identity domain.Identity
	Sink     contract.EventSink
	Room     domain.RoomRecord
}

func (c JoinCommand) RoomID() domain.RoomID { return c.Room.ID }

type LeaveCommand struct {
	request
	Identity domain.Identity
	Room     domain.RoomID
}

func (c LeaveCommand) RoomID() domain.RoomID { return c.Room }

type PostMessageCommand struct {
	request
	Identity   domain.Identity
	Room       domain.RoomID
	SenderName string
	Content    string
}

func (c PostMessageCommand) RoomID() domain.RoomID { return c.Room }
