package runtime_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"room-chat/contract"
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

type RecordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *RecordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *RecordingSink) Close() error { return nil }

func (s *RecordingSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var contents []string
	for _, e := range s.events {
		if posted, ok := e.(event.MessagePosted); ok {
			contents = append(contents, posted.Message.Content)
		}
	}
	return contents
}

func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *RecordingSink) First() event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[0]
}

// memoryStore is an append-only log that remembers the append order.
type memoryStore struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (m *memoryStore) Append(_ context.Context, draft domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft.ID = uuid.New()
	draft.CreatedAt = time.Now().UTC()
	m.messages = append(m.messages, draft)
	return draft, nil
}

func (m *memoryStore) RecentHistory(_ context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inRoom := lo.Filter(m.messages, func(msg domain.Message, _ int) bool { return msg.RoomID == roomID })
	newestFirst := lo.Reverse(append([]domain.Message{}, inRoom...))
	if len(newestFirst) > limit {
		newestFirst = newestFirst[:limit]
	}
	return newestFirst, nil
}

func (m *memoryStore) Contents(roomID domain.RoomID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.FilterMap(m.messages, func(msg domain.Message, _ int) (string, bool) {
		return msg.Content, msg.RoomID == roomID
	})
}

// slowStore delays every call. Append ignores ctx like a write that cannot be
// interrupted; RecentHistory gives up with ctx. A non-nil gate holds Append
// until it is closed, entered is signalled when an Append starts.
type slowStore struct {
	*memoryStore
	appendDelay  time.Duration
	historyDelay time.Duration
	gate         chan struct{}
	entered      chan struct{}
}

func (s *slowStore) Append(ctx context.Context, draft domain.Message) (domain.Message, error) {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	time.Sleep(s.appendDelay)
	return s.memoryStore.Append(ctx, draft)
}

func (s *slowStore) RecentHistory(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	select {
	case <-time.After(s.historyDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.memoryStore.RecentHistory(ctx, roomID, limit)
}

func startOrchestrator(t *testing.T, store contract.IMessageStore, config runtime.OrchestratorConfig) *runtime.Orchestrator {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelInfo)
	metrics := observability.NewMetrics()
	orchestrator := runtime.NewOrchestrator(log,
		workers.NewSupervisor(log, metrics, 10*time.Millisecond),
		runtime.NewRegistry(log, metrics, false),
		store, config)

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
	return orchestrator
}

var defaultConfig = runtime.OrchestratorConfig{RoomBufferSize: 64, HistoryLimit: 50, EchoSender: true}

func Test_Orchestrator_Broadcast_Order_Follows_Append_Order(t *testing.T) {
	req := require.New(t)
	store := &memoryStore{}
	orchestrator := startOrchestrator(t, store, defaultConfig)
	ctx := context.Background()
	room := domain.RoomRecord{ID: "general", Name: "General"}

	// Given three members
	sinks := make([]*RecordingSink, 3)
	for i := range sinks {
		sinks[i] = &RecordingSink{}
		identity := domain.Identity{ID: domain.IdentityID(fmt.Sprintf("user-%d", i))}
		req.NoError(orchestrator.Join(ctx, identity, sinks[i], room))
	}

	// When they all post concurrently
	var wg sync.WaitGroup
	for i := range sinks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := domain.Identity{ID: domain.IdentityID(fmt.Sprintf("user-%d", i))}
			for j := 0; j < 30; j++ {
				err := orchestrator.PostMessage(ctx, identity, "general", "", fmt.Sprintf("%d-%d", i, j))
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	// Then every member observed exactly the append order
	appended := store.Contents("general")
	req.Len(appended, 90)
	for _, sink := range sinks {
		req.Equal(appended, sink.Messages())
	}
}

func Test_Orchestrator_Join_Replays_History_Oldest_First(t *testing.T) {
	req := require.New(t)
	store := &memoryStore{}
	config := defaultConfig
	config.HistoryLimit = 2
	orchestrator := startOrchestrator(t, store, config)
	ctx := context.Background()
	room := domain.RoomRecord{ID: "general", Name: "General"}
	alice := domain.Identity{ID: "alice"}

	req.NoError(orchestrator.Join(ctx, alice, &RecordingSink{}, room))
	for _, content := range []string{"m1", "m2", "m3"} {
		req.NoError(orchestrator.PostMessage(ctx, alice, "general", "Alice", content))
	}

	// When Bob joins
	bob := &RecordingSink{}
	req.NoError(orchestrator.Join(ctx, domain.Identity{ID: "bob"}, bob, room))

	// Then he gets the two newest, oldest first
	joined, ok := bob.First().(event.RoomJoined)
	req.True(ok)
	req.Equal([]string{"m2", "m3"}, lo.Map(joined.Messages, func(m event.MessagePayload, _ int) string { return m.Content }))
	req.Equal("Alice", joined.Messages[0].SenderName)
}

func Test_Orchestrator_Without_Echo(t *testing.T) {
	req := require.New(t)
	config := defaultConfig
	config.EchoSender = false
	orchestrator := startOrchestrator(t, &memoryStore{}, config)
	ctx := context.Background()
	room := domain.RoomRecord{ID: "general"}
	alice, bob := &RecordingSink{}, &RecordingSink{}
	req.NoError(orchestrator.Join(ctx, domain.Identity{ID: "alice"}, alice, room))
	req.NoError(orchestrator.Join(ctx, domain.Identity{ID: "bob"}, bob, room))

	req.NoError(orchestrator.PostMessage(ctx, domain.Identity{ID: "alice"}, "general", "", "hi"))

	req.Empty(alice.Messages())
	req.Equal([]string{"hi"}, bob.Messages())
}

func Test_Orchestrator_Unknown_Room_Spawns_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	supervisor := mocks.NewMockISupervisor(ctrl)
	// No Spawn expected
	log := slog.Default()
	orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(log, observability.NewMetrics(), false),
		&memoryStore{}, defaultConfig)

	err := orchestrator.PostMessage(context.Background(), domain.Identity{ID: "alice"}, "nowhere", "", "hi")
	req.ErrorIs(err, errors.ErrRoomNotFound)

	err = orchestrator.Leave(context.Background(), domain.Identity{ID: "alice"}, "nowhere")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func Test_Orchestrator_Stuck_Room_Times_Out(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := slog.Default()
	room := domain.RoomRecord{ID: "general"}

	tests := []struct {
		name       string
		bufferSize int
		expected   error
	}{
		{"queue full", 0, errors.ErrRoomBusy},
		{"queued but never processed", 1, errors.ErrStoreTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a supervisor that never starts the room worker
			supervisor := mocks.NewMockISupervisor(ctrl)
			supervisor.EXPECT().Spawn(gomock.Any()).Times(1)
			config := defaultConfig
			config.RoomBufferSize = tt.bufferSize
			orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(log, observability.NewMetrics(), false),
				&memoryStore{}, config)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			// When joining
			err := orchestrator.Join(ctx, domain.Identity{ID: "alice"}, &RecordingSink{}, room)

			// Then the command fails instead of hanging
			require.ErrorIs(t, err, tt.expected)
			require.Empty(t, orchestrator.Registry().Members("general"))
		})
	}
}

func Test_Orchestrator_Disconnect_Returns_Evicted(t *testing.T) {
	req := require.New(t)
	orchestrator := startOrchestrator(t, &memoryStore{}, defaultConfig)
	ctx := context.Background()
	sink := &RecordingSink{}
	req.NoError(orchestrator.Join(ctx, domain.Identity{ID: "alice"}, sink, domain.RoomRecord{ID: "general"}))

	req.Equal([]domain.IdentityID{"alice"}, orchestrator.Disconnect(sink))
	req.Empty(orchestrator.Disconnect(sink))
	req.Empty(orchestrator.Registry().Members("general"))
}

func Test_Orchestrator_Slow_Append_Reports_What_Happened(t *testing.T) {
	req := require.New(t)
	store := &slowStore{memoryStore: &memoryStore{}, appendDelay: 80 * time.Millisecond}
	orchestrator := startOrchestrator(t, store, defaultConfig)
	room := domain.RoomRecord{ID: "general"}
	bob := &RecordingSink{}
	req.NoError(orchestrator.Join(context.Background(), domain.Identity{ID: "alice"}, &RecordingSink{}, room))
	req.NoError(orchestrator.Join(context.Background(), domain.Identity{ID: "bob"}, bob, room))

	// When the write outlives the deadline of the command
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := orchestrator.PostMessage(ctx, domain.Identity{ID: "alice"}, "general", "", "hi")

	// Then the reply matches what members saw and what was stored
	req.NoError(err)
	req.Equal([]string{"hi"}, bob.Messages())
	req.Equal([]string{"hi"}, store.Contents("general"))
}

func Test_Orchestrator_Timed_Out_Commands_Have_No_Effect(t *testing.T) {
	req := require.New(t)
	store := &slowStore{memoryStore: &memoryStore{}, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	orchestrator := startOrchestrator(t, store, defaultConfig)
	room := domain.RoomRecord{ID: "general"}
	alice := domain.Identity{ID: "alice"}
	bob := &RecordingSink{}
	req.NoError(orchestrator.Join(context.Background(), alice, &RecordingSink{}, room))
	req.NoError(orchestrator.Join(context.Background(), domain.Identity{ID: "bob"}, bob, room))

	// Given the room worker stuck on a write
	first := make(chan error, 1)
	go func() { first <- orchestrator.PostMessage(context.Background(), alice, "general", "", "first") }()
	<-store.entered

	// When commands queued behind it run out of time
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := orchestrator.PostMessage(ctx, alice, "general", "", "second")
	req.ErrorIs(err, errors.ErrStoreTimeout)

	joinCtx, joinCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer joinCancel()
	carol := &RecordingSink{}
	err = orchestrator.Join(joinCtx, domain.Identity{ID: "carol"}, carol, room)
	req.ErrorIs(err, errors.ErrStoreTimeout)

	// And the worker catches up afterwards
	close(store.gate)
	req.NoError(<-first)
	req.NoError(orchestrator.PostMessage(context.Background(), alice, "general", "", "third"))

	// Then the timed out commands were neither applied nor broadcast
	req.Equal([]string{"first", "third"}, bob.Messages())
	req.Equal([]string{"first", "third"}, store.Contents("general"))
	req.NotContains(orchestrator.Registry().Members("general"), domain.IdentityID("carol"))
	req.Zero(carol.Len())
}

func Test_Orchestrator_Join_History_Timeout_Joins_Nothing(t *testing.T) {
	req := require.New(t)
	store := &slowStore{memoryStore: &memoryStore{}, historyDelay: time.Second}
	orchestrator := startOrchestrator(t, store, defaultConfig)
	sink := &RecordingSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := orchestrator.Join(ctx, domain.Identity{ID: "alice"}, sink, domain.RoomRecord{ID: "general"})

	req.ErrorIs(err, errors.ErrStoreTimeout)
	req.Empty(orchestrator.Registry().Members("general"))
	req.Zero(sink.Len())
}

func Test_Orchestrator_History_Failure_Is_Reported_As_Read_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().RecentHistory(gomock.Any(), domain.RoomID("general"), 50).Return(nil, errors.ErrStoreUnavailable)
	orchestrator := startOrchestrator(t, store, defaultConfig)

	err := orchestrator.Join(context.Background(), domain.Identity{ID: "alice"}, &RecordingSink{}, domain.RoomRecord{ID: "general"})

	req.ErrorIs(err, errors.ErrHistoryUnavailable)
	req.Equal("Failed to load room history", errors.ToClientMessage(err))
	req.Empty(orchestrator.Registry().Members("general"))
}
