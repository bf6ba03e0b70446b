package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const setTTL = 24 * time.Hour

// Store keeps the live-participant set of every room in Redis. It is a
// fast-path mirror of the membership repository: the relay tracks sockets
// here so membership snapshots don't hit the database on every refresh.
type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("presence: connect redis: %w", err)
	}

	return &Store{client: client}, nil
}

func key(roomID string) string {
	return "room:" + roomID + ":peers"
}

func (s *Store) Track(ctx context.Context, roomID, participantID string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key(roomID), participantID)
	pipe.Expire(ctx, key(roomID), setTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Forget(ctx context.Context, roomID, participantID string) error {
	return s.client.SRem(ctx, key(roomID), participantID).Err()
}

func (s *Store) List(ctx context.Context, roomID string) ([]string, error) {
	return s.client.SMembers(ctx, key(roomID)).Result()
}

func (s *Store) Clear(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, key(roomID)).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
