package services

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/domain/event"
	"room-chat/errors"
	"room-chat/observability"
	"room-chat/runtime"
)

type IChatService interface {
	Handle(ctx context.Context, sink contract.EventSink, raw []byte)
	Disconnect(sink contract.EventSink)
}

type ChatServiceConfig struct {
	CommandTimeout   time.Duration
	MaxContentLength int
}

// ChatService is the command dispatcher: it turns inbound frames into
// orchestrator calls and answers failures to the sender only.
type ChatService struct {
	orchestrator *runtime.Orchestrator
	verifier     contract.IVerifier
	rooms        contract.IRoomStore
	metrics      *observability.Metrics
	log          *slog.Logger
	config       ChatServiceConfig
}

func NewChatService(o *runtime.Orchestrator, verifier contract.IVerifier, rooms contract.IRoomStore,
	metrics *observability.Metrics, log *slog.Logger, config ChatServiceConfig) *ChatService {
	return &ChatService{
		orchestrator: o,
		verifier:     verifier,
		rooms:        rooms,
		metrics:      metrics,
		log:          log,
		config:       config,
	}
}

// Handle processes one inbound frame from sink. It never returns an error:
// every failure becomes an `error` event sent back on the same sink.
func (s *ChatService) Handle(ctx context.Context, sink contract.EventSink, raw []byte) {
	start := time.Now()
	command, err := s.handle(ctx, sink, raw)
	s.metrics.Commands.WithLabelValues(string(command), errors.Kind(err)).Inc()
	s.metrics.CommandDuration.WithLabelValues(string(command)).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}

	s.log.Debug("Command rejected", "command", command, "error", err)
	if replyErr := sink.Consume(ctx, event.NewError(errors.ToClientMessage(err))); replyErr != nil {
		s.log.Warn("Unable to reply error", "command", command, "error", replyErr)
	}
}

func (s *ChatService) handle(ctx context.Context, sink contract.EventSink, raw []byte) (domain.CommandName, error) {
	envelope, err := domain.ParseEnvelope(raw)
	if err != nil {
		return "malformed", err
	}
	command := envelope.Command
	if !isKnown(command) {
		// Bounded label set for metrics
		return "unknown", envelope.Validate(s.config.MaxContentLength)
	}

	identity, err := s.verifier.Verify(envelope.Token)
	if err != nil {
		return command, err
	}
	if err = envelope.Validate(s.config.MaxContentLength); err != nil {
		return command, err
	}
	identity.DisplayName = envelope.SenderName(identity)

	ctx, cancel := context.WithTimeout(ctx, s.config.CommandTimeout)
	defer cancel()

	switch command {
	case domain.CommandJoin:
		return command, s.join(ctx, identity, sink, envelope.Room)
	case domain.CommandLeave:
		return command, s.leave(ctx, identity, sink, envelope.Room)
	default:
		return command, s.postMessage(ctx, identity, envelope)
	}
}

func (s *ChatService) postMessage(ctx context.Context, identity domain.Identity, envelope domain.Envelope) error {
	err := s.orchestrator.PostMessage(ctx, identity, envelope.Room, identity.DisplayName, envelope.Content)
	if !stderrors.Is(err, errors.ErrRoomNotFound) {
		return err
	}
	// Nobody joined it yet, but the room may still exist
	if _, findErr := s.rooms.FindRoom(ctx, envelope.Room); findErr == nil {
		return errors.ErrNotMember
	}
	return err
}

func (s *ChatService) join(ctx context.Context, identity domain.Identity, sink contract.EventSink, roomID domain.RoomID) error {
	record, err := s.rooms.FindRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err = s.orchestrator.Join(ctx, identity, sink, record); err != nil {
		return err
	}
	s.log.Info("Identity joined room", "user_id", identity.ID, "room_id", roomID)
	return nil
}

func (s *ChatService) leave(ctx context.Context, identity domain.Identity, sink contract.EventSink, roomID domain.RoomID) error {
	if err := s.orchestrator.Leave(ctx, identity, roomID); err != nil {
		return err
	}
	s.log.Info("Identity left room", "user_id", identity.ID, "room_id", roomID)
	if err := sink.Consume(ctx, event.NewRoomLeft(roomID)); err != nil {
		s.log.Warn("Unable to acknowledge leave", "user_id", identity.ID, "room_id", roomID, "error", err)
	}
	return nil
}

// Disconnect is called by the transport once its connection is gone.
func (s *ChatService) Disconnect(sink contract.EventSink) {
	evicted := s.orchestrator.Disconnect(sink)
	for _, id := range evicted {
		s.log.Info("Identity disconnected", "user_id", id)
	}
}

func isKnown(command domain.CommandName) bool {
	switch command {
	case domain.CommandJoin, domain.CommandLeave, domain.CommandMessage:
		return true
	default:
		return false
	}
}
