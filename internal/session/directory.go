package session

import (
	"context"

	"github.com/seojin-dev/stageline/internal/domain"
)

// RoomInfo is the directory's view of a room.
type RoomInfo struct {
	ID       string `json:"room_id"`
	Title    string `json:"title"`
	OwnerID  string `json:"owner_id"`
	RankMode bool   `json:"rank_mode"`
	Open     bool   `json:"open"`
}

// RoomDirectory is the authoritative room-membership collaborator. The
// in-memory view tolerates transient divergence from it but self-heals by
// refetching on every join/leave event.
type RoomDirectory interface {
	GetRoomByID(ctx context.Context, roomID string) (*RoomInfo, error)
	EnterRoom(ctx context.Context, roomID, userID string) error
	DeleteUserInRoom(ctx context.Context, roomID, userID string) error
	GetAllUsersInRoom(ctx context.Context, roomID string) ([]domain.Participant, error)
	CloseRoom(ctx context.Context, roomID string) error
}

// ScoreStore is the authoritative score collaborator; the turn machine is
// never the system of record for scores.
type ScoreStore interface {
	GetUserScoreInRoom(ctx context.Context, roomID, userID string) (int, error)
	UpdateScore(ctx context.Context, roomID, userID string, score int) error
	UpdateTotalScores(ctx context.Context, roomID string) error
}
