package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"room-chat/auth"
	"room-chat/domain"
	"room-chat/domain/event"
	"room-chat/errors"
	"room-chat/mocks"
	"room-chat/observability"
	"room-chat/runtime"
	"room-chat/runtime/workers"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var secret = []byte("chat-service-test-secret")

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event{}, s.events...)
}

func (s *recordingSink) Last() event.Event {
	events := s.Events()
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

type fixture struct {
	service  *ChatService
	registry *runtime.Registry
	messages *mocks.MockIMessageStore
	rooms    *mocks.MockIRoomStore
	issuer   *auth.Issuer
}

func newFixture(t *testing.T, timeout time.Duration) fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	metrics := observability.NewMetrics()
	messages := mocks.NewMockIMessageStore(ctrl)
	rooms := mocks.NewMockIRoomStore(ctrl)

	registry := runtime.NewRegistry(log, metrics, false)
	supervisor := workers.NewSupervisor(log, metrics, 10*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, registry, messages, runtime.OrchestratorConfig{
		RoomBufferSize: 16,
		HistoryLimit:   50,
		EchoSender:     true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orchestrator.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	service := NewChatService(orchestrator, auth.NewVerifier(secret), rooms, metrics, log, ChatServiceConfig{
		CommandTimeout:   timeout,
		MaxContentLength: 20,
	})
	return fixture{
		service:  service,
		registry: registry,
		messages: messages,
		rooms:    rooms,
		issuer:   auth.NewIssuer(secret),
	}
}

func (f fixture) token(t *testing.T, id, name string) string {
	t.Helper()
	token, err := f.issuer.GenerateToken(domain.Identity{ID: domain.IdentityID(id), DisplayName: name}, nil, time.Hour)
	require.NoError(t, err)
	return token
}

func frame(t *testing.T, fields map[string]string) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func requireError(t *testing.T, sink *recordingSink, message string) {
	t.Helper()
	last, ok := sink.Last().(event.Error)
	require.True(t, ok, "expected an error event, got %#v", sink.Last())
	require.Equal(t, message, last.Message)
}

func general() domain.RoomRecord {
	return domain.RoomRecord{ID: "general", Name: "General", Admin: "alice"}
}

func (f fixture) expectRoom(record domain.RoomRecord) {
	f.rooms.EXPECT().FindRoom(gomock.Any(), record.ID).Return(record, nil).AnyTimes()
}

// appendInMemory makes the message store mock behave like a real append-only log.
func (f fixture) appendInMemory() {
	f.messages.EXPECT().RecentHistory(gomock.Any(), gomock.Any(), 50).Return([]domain.Message{}, nil).AnyTimes()
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Message) (domain.Message, error) {
			draft.ID = uuid.New()
			draft.CreatedAt = time.Now().UTC()
			return draft, nil
		}).AnyTimes()
}

func Test_Scenario_Join_Join_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second)
	f.expectRoom(general())
	f.appendInMemory()
	ctx := context.Background()
	alice, bob := &recordingSink{}, &recordingSink{}

	// Given Alice joins an empty room
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "general"}))
	joined, ok := alice.Last().(event.RoomJoined)
	req.True(ok)
	req.Empty(joined.Messages)
	req.NotNil(joined.Messages)
	req.Equal("General", joined.Room.Name)

	// And Bob joins afterward
	f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "join", "token": f.token(t, "bob", "Bob"), "roomId": "general"}))
	userJoined, ok := alice.Last().(event.UserJoined)
	req.True(ok)
	req.Equal(domain.IdentityID("bob"), userJoined.UserID)
	req.Equal("Bob", userJoined.UserName)

	// When Alice says hi
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "message", "token": f.token(t, "alice", "Alice"), "roomId": "general", "content": "hi"}))

	// Then both receive the persisted message
	for _, sink := range []*recordingSink{alice, bob} {
		posted, ok := sink.Last().(event.MessagePosted)
		req.True(ok)
		req.Equal("hi", posted.Message.Content)
		req.Equal(domain.IdentityID("alice"), posted.Message.SenderID)
		req.Equal("Alice", posted.Message.SenderName)
	}
}

func Test_Join_Unknown_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second)
	f.rooms.EXPECT().FindRoom(gomock.Any(), domain.RoomID("nowhere")).Return(domain.RoomRecord{}, errors.ErrRoomNotFound)
	sink := &recordingSink{}

	// When joining a room unknown to the store
	f.service.Handle(context.Background(), sink, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "nowhere"}))

	// Then only the sender hears about it and nothing is registered
	requireError(t, sink, "Room not found")
	req.Len(sink.Events(), 1)
	req.False(f.registry.RoomExists("nowhere"))
	req.Zero(f.registry.Stats().Connections)
}

func Test_Rejections_Before_Any_Mutation(t *testing.T) {
	f := newFixture(t, time.Second)
	expired, err := f.issuer.GenerateToken(domain.Identity{ID: "alice"}, nil, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		raw      []byte
		expected string
	}{
		{"malformed json", []byte("{not json"), "Malformed request"},
		{"unknown command", frame(t, map[string]string{"command": "dance", "roomId": "general"}), "Unknown command"},
		{"missing token", frame(t, map[string]string{"command": "join", "roomId": "general"}), "Token is required"},
		{"garbage token", frame(t, map[string]string{"command": "join", "token": "abc.def.ghi", "roomId": "general"}), "Invalid token"},
		{"expired token", frame(t, map[string]string{"command": "join", "token": expired, "roomId": "general"}), "Token expired"},
		{"missing room", frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice")}), "Malformed request"},
		{"empty content", frame(t, map[string]string{"command": "message", "token": f.token(t, "alice", "Alice"), "roomId": "general", "content": "   "}), "Malformed request"},
		{"content too long", frame(t, map[string]string{"command": "message", "token": f.token(t, "alice", "Alice"), "roomId": "general", "content": "this content is far too long"}), "Message too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			f.service.Handle(context.Background(), sink, tt.raw)
			requireError(t, sink, tt.expected)
			require.Len(t, sink.Events(), 1)
			require.Zero(t, f.registry.Stats().Connections)
			require.Zero(t, f.registry.Stats().Rooms)
		})
	}
}

func Test_Message_Without_Membership(t *testing.T) {
	f := newFixture(t, time.Second)
	f.expectRoom(general())
	f.rooms.EXPECT().FindRoom(gomock.Any(), domain.RoomID("ghost")).Return(domain.RoomRecord{}, errors.ErrRoomNotFound)
	f.appendInMemory()
	ctx := context.Background()
	alice, bob := &recordingSink{}, &recordingSink{}
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "general"}))

	t.Run("room with members but not the sender", func(t *testing.T) {
		f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "message", "token": f.token(t, "bob", "Bob"), "roomId": "general", "content": "hey"}))
		requireError(t, bob, "Not a member of this room")
		_, ok := alice.Last().(event.RoomJoined)
		require.True(t, ok, "alice must not receive anything")
	})

	t.Run("room unknown everywhere", func(t *testing.T) {
		f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "message", "token": f.token(t, "bob", "Bob"), "roomId": "ghost", "content": "hey"}))
		requireError(t, bob, "Room not found")
		require.False(t, f.registry.RoomExists("ghost"))
	})
}

func Test_Leave_Acknowledges_And_Notifies(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second)
	f.expectRoom(general())
	f.appendInMemory()
	ctx := context.Background()
	alice, bob := &recordingSink{}, &recordingSink{}
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "general"}))
	f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "join-room", "token": f.token(t, "bob", "Bob"), "roomId": "general"}))

	// When Bob leaves with the legacy command name
	f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "leave-room", "token": f.token(t, "bob", "Bob"), "roomId": "general"}))

	// Then Bob gets an acknowledgement and Alice a user-left
	left, ok := bob.Last().(event.RoomLeft)
	req.True(ok)
	req.Equal(domain.RoomID("general"), left.RoomID)
	userLeft, ok := alice.Last().(event.UserLeft)
	req.True(ok)
	req.Equal(domain.IdentityID("bob"), userLeft.UserID)
	req.Equal([]domain.IdentityID{"alice"}, f.registry.Members("general"))
	req.Empty(f.registry.RoomsOf("bob"))
}

func Test_Store_Timeout_Fails_The_Command_Only(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 100*time.Millisecond)
	f.expectRoom(general())
	f.messages.EXPECT().RecentHistory(gomock.Any(), gomock.Any(), 50).Return([]domain.Message{}, nil).AnyTimes()
	// Given a store that never answers before the caller gives up
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.Message) (domain.Message, error) {
			<-ctx.Done()
			return domain.Message{}, ctx.Err()
		})
	ctx := context.Background()
	alice, bob := &recordingSink{}, &recordingSink{}
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "general"}))
	f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "join", "token": f.token(t, "bob", "Bob"), "roomId": "general"}))
	before := len(bob.Events())

	// When Alice posts
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "message", "token": f.token(t, "alice", "Alice"), "roomId": "general", "content": "hello?"}))

	// Then Alice gets a timeout and nobody sees a message
	requireError(t, alice, "Request timed out")
	req.Len(bob.Events(), before)
	req.ElementsMatch([]domain.IdentityID{"alice", "bob"}, f.registry.Members("general"))
}

func Test_History_Failure_On_Join_Is_Reported_As_Such(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second)
	f.expectRoom(general())
	// Given an open circuit on the message store
	f.messages.EXPECT().RecentHistory(gomock.Any(), gomock.Any(), 50).Return(nil, errors.ErrStoreUnavailable)
	alice := &recordingSink{}

	// When joining
	f.service.Handle(context.Background(), alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "general"}))

	// Then the reply names the history, not a save
	requireError(t, alice, "Failed to load room history")
	req.Empty(f.registry.Members("general"))
}

func Test_Sender_Name_Precedence(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second)
	f.expectRoom(general())
	f.appendInMemory()
	ctx := context.Background()
	alice := &recordingSink{}
	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": "general"}))

	f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "message", "token": f.token(t, "alice", "Alice"), "roomId": "general", "content": "hi", "displayName": "Ally"}))

	posted, ok := alice.Last().(event.MessagePosted)
	req.True(ok)
	req.Equal("Ally", posted.Message.SenderName)
}

func Test_Disconnect_Evicts_From_Every_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second)
	f.expectRoom(general())
	f.expectRoom(domain.RoomRecord{ID: "random", Name: "Random"})
	f.appendInMemory()
	ctx := context.Background()
	alice, bob := &recordingSink{}, &recordingSink{}
	for _, room := range []string{"general", "random"} {
		f.service.Handle(ctx, alice, frame(t, map[string]string{"command": "join", "token": f.token(t, "alice", "Alice"), "roomId": room}))
		f.service.Handle(ctx, bob, frame(t, map[string]string{"command": "join", "token": f.token(t, "bob", "Bob"), "roomId": room}))
	}
	before := len(bob.Events())

	// When Alice's transport goes away
	f.service.Disconnect(alice)

	// Then Bob is told once per room
	userLeft := lo.Filter(bob.Events()[before:], func(e event.Event, _ int) bool { return e.Name() == event.UserLeftName })
	req.Len(userLeft, 2)
	req.ElementsMatch([]domain.RoomID{"general", "random"}, lo.Map(userLeft, func(e event.Event, _ int) domain.RoomID {
		return e.(event.UserLeft).RoomID
	}))
	req.Empty(f.registry.RoomsOf("alice"))
	_, online := f.registry.SinkOf("alice")
	req.False(online)
}
