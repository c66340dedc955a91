// Package runtime holds the live state of the chat: who is connected, which rooms
// they belong to, and how events reach them. It contains no protocol parsing.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/errors"
)

type OrchestratorConfig struct {
	RoomBufferSize int
	HistoryLimit   int
	EchoSender     bool
}

// Orchestrator routes room commands to their RoomWorker, starting workers lazily
// under the supervisor, and applies disconnections directly on the Registry.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	store      contract.IMessageStore
	config     OrchestratorConfig
	queues     map[domain.RoomID]chan domain.Command
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	store contract.IMessageStore, config OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		store:      store,
		config:     config,
		queues:     make(map[domain.RoomID]chan domain.Command),
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Join replays history to sink and registers identity in room.
// room must come from the durable room store.
func (o *Orchestrator) Join(ctx context.Context, identity domain.Identity, sink contract.EventSink, room domain.RoomRecord) error {
	cmd := JoinCommand{request: newRequest(ctx), Identity: identity, Sink: sink, Room: room}
	return o.submit(cmd, cmd.request)
}

func (o *Orchestrator) Leave(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error {
	if !o.registry.RoomExists(roomID) {
		return errors.ErrRoomNotFound
	}
	cmd := LeaveCommand{request: newRequest(ctx), Identity: identity, Room: roomID}
	return o.submit(cmd, cmd.request)
}

func (o *Orchestrator) PostMessage(ctx context.Context, identity domain.Identity, roomID domain.RoomID, senderName, content string) error {
	// Rejected before a worker is ever created for an unknown room id
	if err := o.registry.CheckMember(roomID, identity.ID); err != nil {
		return err
	}
	cmd := PostMessageCommand{
		request:    newRequest(ctx),
		Identity:   identity,
		Room:       roomID,
		SenderName: senderName,
		Content:    content,
	}
	return o.submit(cmd, cmd.request)
}

// Disconnect has no I/O and goes straight to the Registry.
// It returns the identities that were evicted, none for a superseded transport.
func (o *Orchestrator) Disconnect(sink contract.EventSink) []domain.IdentityID {
	ids := o.registry.Disconnect(sink)
	if len(ids) > 0 {
		o.log.Debug("Transport disconnected", "identities", len(ids))
	}
	return ids
}

// Start runs the supervisor until ctx is done. Extra workers (heartbeat...) are
// passed through.
func (o *Orchestrator) Start(ctx context.Context, workers ...contract.Worker) error {
	o.supervisor.Add(workers...)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown of the orchestrator.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// QueueDepths samples how many commands wait in front of each room worker.
// Reading len of a channel never blocks the senders.
func (o *Orchestrator) QueueDepths() map[domain.RoomID]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	depths := make(map[domain.RoomID]int, len(o.queues))
	for roomID, queue := range o.queues {
		depths[roomID] = len(queue)
	}
	return depths
}

func (o *Orchestrator) submit(cmd domain.Command, req request) error {
	queue := o.queue(cmd.RoomID())

	select {
	case queue <- cmd:
	case <-req.ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrRoomBusy, req.ctx.Err())
	}

	select {
	case err := <-req.result:
		return err
	case <-req.ctx.Done():
		if req.claim() {
			return fmt.Errorf("%w: %v", errors.ErrStoreTimeout, req.ctx.Err())
		}
		// The worker is already applying it, its outcome is the truth
		return <-req.result
	}
}

// queue returns the command channel of a room, spawning its worker on first use.
func (o *Orchestrator) queue(roomID domain.RoomID) chan domain.Command {
	o.mu.Lock()
	defer o.mu.Unlock()

	if queue, ok := o.queues[roomID]; ok {
		return queue
	}
	queue := make(chan domain.Command, o.config.RoomBufferSize)
	o.queues[roomID] = queue
	o.supervisor.Spawn(NewRoomWorker(roomID, queue, o.registry, o.store, o.config.HistoryLimit, o.config.EchoSender, o.log))
	o.log.Debug("Room worker spawned", "room_id", roomID)
	return queue
}
