package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/repository"
)

// ScoreService is the system of record for scoring: per-room scores during
// a game, folded into cumulative user totals when the game ends.
type ScoreService struct {
	members repository.MembershipRepository
	log     *slog.Logger
}

func NewScoreService(members repository.MembershipRepository, log *slog.Logger) *ScoreService {
	if log == nil {
		log = slog.Default()
	}
	return &ScoreService{members: members, log: log}
}

func (s *ScoreService) GetUserScoreInRoom(ctx context.Context, roomID uuid.UUID, userID string) (int, error) {
	return s.members.GetScore(ctx, roomID, userID)
}

// UpdateScore adds a submitted score to the performer's running room score.
// Several scorers rate one performance, so submissions accumulate.
func (s *ScoreService) UpdateScore(ctx context.Context, roomID uuid.UUID, userID string, score int) error {
	const op = "service.score.update"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID.String()),
		slog.String("user_id", userID),
	)

	if score < 0 {
		return errors.New("score must not be negative")
	}

	current, err := s.members.GetScore(ctx, roomID, userID)
	if err != nil {
		return err
	}

	if err := s.members.UpdateScore(ctx, roomID, userID, current+score); err != nil {
		return err
	}

	log.Info("score updated", "delta", score, "total", current+score)
	return nil
}

func (s *ScoreService) UpdateTotalScores(ctx context.Context, roomID uuid.UUID) error {
	const op = "service.score.updateTotals"

	if err := s.members.UpdateTotalScores(ctx, roomID); err != nil {
		return err
	}

	s.log.Info("total scores aggregated", slog.String("op", op), slog.String("room_id", roomID.String()))
	return nil
}
