//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"room-chat/domain"
	"room-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Spawn(worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the live transport handle of a connection.
// Consume must not block: a full or closed sink returns an error instead.
// Implementations are used as map keys and must be comparable (pointer receivers).
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
	Close() error
}

// IVerifier turns a bearer token into an Identity.
type IVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// IMessageStore is the append-only durable log of messages.
type IMessageStore interface {
	// Append persists the draft and returns it with ID and CreatedAt assigned.
	Append(ctx context.Context, draft domain.Message) (domain.Message, error)
	// RecentHistory returns at most limit messages, most recent first.
	RecentHistory(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)
}

// IRoomStore holds durable room records.
type IRoomStore interface {
	CreateRoom(ctx context.Context, room domain.RoomRecord) (domain.RoomRecord, error)
	FindRoom(ctx context.Context, roomID domain.RoomID) (domain.RoomRecord, error)
}
