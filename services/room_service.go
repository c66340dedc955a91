package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/errors"
	"room-chat/runtime"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type IRoomService interface {
	CreateRoom(ctx context.Context, admin domain.Identity, request CreateRoomRequest) (domain.RoomRecord, error)
	GetRoom(ctx context.Context, roomID domain.RoomID) (RoomView, error)
	History(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
}

type CreateRoomRequest struct {
	ID   string `json:"id" validate:"required,max=128"`
	Name string `json:"name" validate:"required,min=3,max=64"`
}

// RoomView is a durable room record plus its live audience.
type RoomView struct {
	domain.RoomRecord
	Online int
}

type RoomService struct {
	rooms        contract.IRoomStore
	messages     contract.IMessageStore
	registry     *runtime.Registry
	historyLimit int
}

func NewRoomService(rooms contract.IRoomStore, messages contract.IMessageStore, registry *runtime.Registry, historyLimit int) *RoomService {
	return &RoomService{rooms: rooms, messages: messages, registry: registry, historyLimit: historyLimit}
}

// CreateRoom validates then persists a room administered by admin.
// Duplicated ids and names surface as ErrRoomExists and ErrRoomNameTaken.
func (s *RoomService) CreateRoom(ctx context.Context, admin domain.Identity, request CreateRoomRequest) (domain.RoomRecord, error) {
	request.ID = strings.TrimSpace(request.ID)
	request.Name = strings.TrimSpace(request.Name)
	if err := validate.Struct(request); err != nil {
		return domain.RoomRecord{}, fmt.Errorf("%w: %v", errors.ErrInvalidEnvelope, err)
	}
	return s.rooms.CreateRoom(ctx, domain.RoomRecord{
		ID:        domain.RoomID(request.ID),
		Name:      request.Name,
		Admin:     admin.ID,
		CreatedAt: time.Now().UTC().UnixMilli(),
	})
}

func (s *RoomService) GetRoom(ctx context.Context, roomID domain.RoomID) (RoomView, error) {
	record, err := s.rooms.FindRoom(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	return RoomView{RoomRecord: record, Online: len(s.registry.Members(roomID))}, nil
}

// History returns the newest messages of an existing room, most recent first.
func (s *RoomService) History(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	if _, err := s.rooms.FindRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.messages.RecentHistory(ctx, roomID, s.historyLimit)
}
