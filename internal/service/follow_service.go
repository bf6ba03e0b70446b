package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/internal/repository"
)

var ErrSelfFollow = errors.New("cannot follow yourself")

// FollowService maintains the social graph between performers.
type FollowService struct {
	follows repository.FollowRepository
	users   repository.UserRepository
	log     *slog.Logger
}

func NewFollowService(follows repository.FollowRepository, users repository.UserRepository, log *slog.Logger) *FollowService {
	if log == nil {
		log = slog.Default()
	}
	return &FollowService{follows: follows, users: users, log: log}
}

func (s *FollowService) Follow(ctx context.Context, followerID, followeeID string) error {
	const op = "service.follow.follow"
	log := s.log.With(slog.String("op", op))

	if followerID == "" || followeeID == "" {
		return errors.New("both user ids are required")
	}
	if followerID == followeeID {
		return ErrSelfFollow
	}

	// Both profiles must exist; an edge to a ghost would vanish from every
	// listing anyway.
	if _, err := s.users.GetByID(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, followeeID); err != nil {
		return err
	}

	if err := s.follows.Follow(ctx, followerID, followeeID); err != nil {
		return err
	}

	log.Info("follow recorded", "follower", followerID, "followee", followeeID)
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if followerID == "" || followeeID == "" {
		return errors.New("both user ids are required")
	}
	return s.follows.Unfollow(ctx, followerID, followeeID)
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == "" || followeeID == "" {
		return false, errors.New("both user ids are required")
	}
	return s.follows.IsFollowing(ctx, followerID, followeeID)
}

func (s *FollowService) Followers(ctx context.Context, userID string) ([]*domain.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.follows.ListFollowers(ctx, userID)
}

func (s *FollowService) Following(ctx context.Context, userID string) ([]*domain.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.follows.ListFollowing(ctx, userID)
}
