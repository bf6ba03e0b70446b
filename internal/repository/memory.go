package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/domain"
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*domain.Room
	chats map[uuid.UUID][]*domain.ChatMessage
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[uuid.UUID]*domain.Room),
		chats: make(map[uuid.UUID][]*domain.ChatMessage),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[room.ID] = room
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

func (r *InMemoryRoomRepository) ListOpen(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.Open {
			result = append(result, room)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *InMemoryRoomRepository) Close(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}

	room.Open = false
	return nil
}

func (r *InMemoryRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return ErrRoomNotFound
	}

	delete(r.rooms, id)
	delete(r.chats, id)
	return nil
}

func (r *InMemoryRoomRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.chats[msg.RoomID] = append(r.chats[msg.RoomID], msg)
	return nil
}

func (r *InMemoryRoomRepository) ListChatMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.chats[roomID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	return append([]*domain.ChatMessage(nil), msgs...), nil
}

type membershipKey struct {
	roomID uuid.UUID
	userID string
}

type memberEntry struct {
	score    int
	joinedAt time.Time
}

type InMemoryMembershipRepository struct {
	mu      sync.RWMutex
	members map[membershipKey]*memberEntry
	users   UserRepository
}

// NewInMemoryMembershipRepository joins membership rows against the given
// user repository when listing participants, mirroring the SQL join.
func NewInMemoryMembershipRepository(users UserRepository) *InMemoryMembershipRepository {
	return &InMemoryMembershipRepository{
		members: make(map[membershipKey]*memberEntry),
		users:   users,
	}
}

func (r *InMemoryMembershipRepository) AddUser(ctx context.Context, roomID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := membershipKey{roomID: roomID, userID: userID}
	if _, ok := r.members[key]; ok {
		return nil
	}

	r.members[key] = &memberEntry{joinedAt: time.Now().UTC()}
	return nil
}

func (r *InMemoryMembershipRepository) RemoveUser(ctx context.Context, roomID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := membershipKey{roomID: roomID, userID: userID}
	if _, ok := r.members[key]; !ok {
		return ErrMemberNotFound
	}

	delete(r.members, key)
	return nil
}

func (r *InMemoryMembershipRepository) ListUsers(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type row struct {
		userID   string
		score    int
		joinedAt time.Time
	}

	r.mu.RLock()
	rows := make([]row, 0)
	for key, entry := range r.members {
		if key.roomID != roomID {
			continue
		}
		rows = append(rows, row{userID: key.userID, score: entry.score, joinedAt: entry.joinedAt})
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].joinedAt.Before(rows[j].joinedAt)
	})

	participants := make([]*domain.Participant, 0, len(rows))
	for _, row := range rows {
		p := &domain.Participant{ID: row.userID, Score: row.score}
		if r.users != nil {
			if user, err := r.users.GetByID(ctx, row.userID); err == nil {
				p.DisplayName = user.Name
				p.AvatarURL = user.Image
			}
		}
		participants = append(participants, p)
	}

	return participants, nil
}

func (r *InMemoryMembershipRepository) GetScore(ctx context.Context, roomID uuid.UUID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.members[membershipKey{roomID: roomID, userID: userID}]
	if !ok {
		return 0, ErrMemberNotFound
	}

	return entry.score, nil
}

func (r *InMemoryMembershipRepository) UpdateScore(ctx context.Context, roomID uuid.UUID, userID string, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.members[membershipKey{roomID: roomID, userID: userID}]
	if !ok {
		return ErrMemberNotFound
	}

	entry.score = score
	return nil
}

func (r *InMemoryMembershipRepository) UpdateTotalScores(ctx context.Context, roomID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.users == nil {
		return nil
	}

	r.mu.RLock()
	scores := make(map[string]int)
	for key, entry := range r.members {
		if key.roomID == roomID {
			scores[key.userID] = entry.score
		}
	}
	r.mu.RUnlock()

	for userID, score := range scores {
		user, err := r.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			return err
		}
		user.TotalScore += score
		if err := r.users.Update(ctx, user); err != nil {
			return err
		}
	}

	return nil
}

type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrUserExists
	}

	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}

	copied := *user
	r.users[user.ID] = &copied
	return nil
}

type followKey struct {
	followerID string
	followeeID string
}

type InMemoryFollowRepository struct {
	mu    sync.RWMutex
	edges map[followKey]time.Time
	users UserRepository
}

// NewInMemoryFollowRepository joins follow edges against the given user
// repository when listing, mirroring the SQL join: edges without a profile
// row are dropped.
func NewInMemoryFollowRepository(users UserRepository) *InMemoryFollowRepository {
	return &InMemoryFollowRepository{
		edges: make(map[followKey]time.Time),
		users: users,
	}
}

func (r *InMemoryFollowRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := followKey{followerID: followerID, followeeID: followeeID}
	if _, ok := r.edges[key]; ok {
		return nil
	}

	r.edges[key] = time.Now().UTC()
	return nil
}

func (r *InMemoryFollowRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := followKey{followerID: followerID, followeeID: followeeID}
	if _, ok := r.edges[key]; !ok {
		return ErrFollowNotFound
	}

	delete(r.edges, key)
	return nil
}

func (r *InMemoryFollowRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.edges[followKey{followerID: followerID, followeeID: followeeID}]
	return ok, nil
}

func (r *InMemoryFollowRepository) ListFollowers(ctx context.Context, userID string) ([]*domain.User, error) {
	return r.listEdges(ctx, func(key followKey) (string, bool) {
		return key.followerID, key.followeeID == userID
	})
}

func (r *InMemoryFollowRepository) ListFollowing(ctx context.Context, userID string) ([]*domain.User, error) {
	return r.listEdges(ctx, func(key followKey) (string, bool) {
		return key.followeeID, key.followerID == userID
	})
}

func (r *InMemoryFollowRepository) listEdges(ctx context.Context, pick func(followKey) (string, bool)) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type row struct {
		userID    string
		createdAt time.Time
	}

	r.mu.RLock()
	rows := make([]row, 0)
	for key, createdAt := range r.edges {
		if id, ok := pick(key); ok {
			rows = append(rows, row{userID: id, createdAt: createdAt})
		}
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].createdAt.Before(rows[j].createdAt)
	})

	users := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		user, err := r.users.GetByID(ctx, row.userID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}
