package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/domain"
)

type RoomInteractor interface {
	CreateRoom(ctx context.Context, title, subTitle, category string, rankMode bool, ownerID string) (*domain.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	ListOpenRooms(ctx context.Context) ([]*domain.Room, error)
	CloseRoom(ctx context.Context, id uuid.UUID) error
	RegisterPeer(ctx context.Context, roomID uuid.UUID, user *domain.User) (*domain.Peer, error)
	UnregisterPeer(ctx context.Context, roomID uuid.UUID, peerID string) error
	HandleSignal(ctx context.Context, roomID uuid.UUID, peerID string, env *domain.Envelope) error
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
	ChatHistory(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

// PresenceTracker mirrors live room membership in a fast store. A nil
// tracker disables the mirror; the membership repository stays the
// authoritative record either way.
type PresenceTracker interface {
	Track(ctx context.Context, roomID, participantID string) error
	Forget(ctx context.Context, roomID, participantID string) error
	List(ctx context.Context, roomID string) ([]string, error)
	Clear(ctx context.Context, roomID string) error
}

type ScoreInteractor interface {
	GetUserScoreInRoom(ctx context.Context, roomID uuid.UUID, userID string) (int, error)
	UpdateScore(ctx context.Context, roomID uuid.UUID, userID string, score int) error
	UpdateTotalScores(ctx context.Context, roomID uuid.UUID) error
}

type UserInteractor interface {
	CreateUser(ctx context.Context, id, name, image string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

type FollowInteractor interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	Followers(ctx context.Context, userID string) ([]*domain.User, error)
	Following(ctx context.Context, userID string) ([]*domain.User, error)
}
