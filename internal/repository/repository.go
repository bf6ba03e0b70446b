package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	ListOpen(ctx context.Context) ([]*domain.Room, error)
	Close(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	// ListChatMessages returns the newest messages of a room in
	// chronological order, at most limit of them.
	ListChatMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

// MembershipRepository is the authoritative room-membership and score
// record: who entered which room and what they scored this game.
type MembershipRepository interface {
	AddUser(ctx context.Context, roomID uuid.UUID, userID string) error
	RemoveUser(ctx context.Context, roomID uuid.UUID, userID string) error
	ListUsers(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
	GetScore(ctx context.Context, roomID uuid.UUID, userID string) (int, error)
	UpdateScore(ctx context.Context, roomID uuid.UUID, userID string, score int) error
	// UpdateTotalScores folds every member's room score into their
	// cumulative user total. Called once, at game end.
	UpdateTotalScores(ctx context.Context, roomID uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// FollowRepository records the social graph as directed follower edges.
// Following twice is a no-op; listings join against user profiles.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowers(ctx context.Context, userID string) ([]*domain.User, error)
	ListFollowing(ctx context.Context, userID string) ([]*domain.User, error)
}
