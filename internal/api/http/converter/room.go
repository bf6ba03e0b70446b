package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/domain"
)

type RoomResponse struct {
	ID        uuid.UUID `json:"room_id"`
	Title     string    `json:"title"`
	SubTitle  string    `json:"sub_title"`
	Category  string    `json:"category"`
	RankMode  bool      `json:"rank_mode"`
	Open      bool      `json:"open"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	return &RoomResponse{
		ID:        r.ID,
		Title:     r.Title,
		SubTitle:  r.SubTitle,
		Category:  r.Category,
		RankMode:  r.RankMode,
		Open:      r.Open,
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt,
	}
}

func RoomsToApi(rooms []*domain.Room) []*RoomResponse {
	result := make([]*RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, RoomToApi(room))
	}
	return result
}

type ChatMessageResponse struct {
	ID          uuid.UUID `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

func ChatMessagesToApi(msgs []*domain.ChatMessage) []*ChatMessageResponse {
	result := make([]*ChatMessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, &ChatMessageResponse{
			ID:          msg.ID,
			SenderID:    msg.SenderID,
			DisplayName: msg.DisplayName,
			Content:     msg.Content,
			CreatedAt:   msg.CreatedAt,
		})
	}
	return result
}
