package rest

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"room-chat/domain"
	"room-chat/errors"
	"room-chat/services"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type RoomHandler struct {
	rooms services.IRoomService
	log   *slog.Logger
}

func NewRoomHandler(rooms services.IRoomService, log *slog.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, log: log}
}

type RoomResponse struct {
	ID        domain.RoomID     `json:"id"`
	Name      string            `json:"name"`
	Admin     domain.IdentityID `json:"admin"`
	CreatedAt time.Time         `json:"createdAt"`
	Online    int               `json:"online"`
}

type MessageResponse struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	SenderID   domain.IdentityID `json:"senderId"`
	SenderName string            `json:"senderName"`
	CreatedAt  time.Time         `json:"createdAt"`
	RoomID     domain.RoomID     `json:"roomId"`
}

// CreateRoom handles POST /rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var request services.CreateRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&request); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.rooms.CreateRoom(r.Context(), identity, request)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("Room created", "room_id", record.ID, "user_id", identity.ID)
	respondJSON(w, http.StatusCreated, toRoomResponse(services.RoomView{RoomRecord: record}))
}

// GetRoom handles GET /rooms/{roomID}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := h.rooms.GetRoom(r.Context(), domain.RoomID(chi.URLParam(r, "roomID")))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRoomResponse(view))
}

// History handles GET /rooms/{roomID}/messages, newest first.
func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	messages, err := h.rooms.History(r.Context(), domain.RoomID(chi.URLParam(r, "roomID")))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
			return MessageResponse{
				ID:         m.ID.String(),
				Content:    m.Content,
				SenderID:   m.SenderID,
				SenderName: m.SenderName,
				CreatedAt:  m.CreatedAt,
				RoomID:     m.RoomID,
			}
		}),
	})
}

func (h *RoomHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrRoomExists):
		respondError(w, http.StatusConflict, "Room already exists")
	case stderrors.Is(err, errors.ErrRoomNameTaken):
		respondError(w, http.StatusConflict, "Room name already exists")
	case stderrors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, errors.ToClientMessage(err))
	case stderrors.Is(err, errors.ErrProtocol):
		respondError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrStoreTimeout):
		respondError(w, http.StatusGatewayTimeout, errors.ToClientMessage(err))
	case stderrors.Is(err, errors.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		h.log.Error("Room request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func toRoomResponse(view services.RoomView) RoomResponse {
	return RoomResponse{
		ID:        view.ID,
		Name:      view.Name,
		Admin:     view.Admin,
		CreatedAt: time.UnixMilli(view.CreatedAt).UTC(),
		Online:    view.Online,
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
