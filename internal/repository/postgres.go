package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/internal/repository/model"
	"gorm.io/gorm"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserExists     = errors.New("user already exists")
	ErrMemberNotFound = errors.New("member not found in room")
	ErrFollowNotFound = errors.New("follow relation not found")
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	return r.db.WithContext(ctx).Create(toModelRoom(room)).Error
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room), nil
}

func (r *PostgresRoomRepository) ListOpen(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []model.Room
	if err := r.db.WithContext(ctx).Where("open = ?", true).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Room, 0, len(rooms))
	for i := range rooms {
		result = append(result, toDomainRoom(&rooms[i]))
	}

	return result, nil
}

func (r *PostgresRoomRepository) Close(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).Update("open", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Room{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("chat message is nil")
	}

	return r.db.WithContext(ctx).Create(&model.ChatMessage{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		DisplayName: msg.DisplayName,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt.UTC(),
	}).Error
}

func (r *PostgresRoomRepository) ListChatMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.ChatMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	// newest-first from the query, chronological for the caller
	msgs := make([]*domain.ChatMessage, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = &domain.ChatMessage{
			ID:          row.ID,
			RoomID:      row.RoomID,
			SenderID:    row.SenderID,
			DisplayName: row.DisplayName,
			Content:     row.Content,
			CreatedAt:   row.CreatedAt,
		}
	}

	return msgs, nil
}

type PostgresMembershipRepository struct {
	db *gorm.DB
}

func NewPostgresMembershipRepository(db *gorm.DB) *PostgresMembershipRepository {
	return &PostgresMembershipRepository{db: db}
}

func (r *PostgresMembershipRepository) AddUser(ctx context.Context, roomID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	member := model.RoomUser{
		RoomID:   roomID,
		UserID:   userID,
		Score:    0,
		JoinedAt: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Create(&member).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Re-entering a room keeps the existing score row.
		return nil
	}
	return err
}

func (r *PostgresMembershipRepository) RemoveUser(ctx context.Context, roomID uuid.UUID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.RoomUser{}, "room_id = ? AND user_id = ?", roomID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMembershipRepository) ListUsers(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []struct {
		UserID string
		Name   string
		Image  *string
		Score  int
	}

	err := r.db.WithContext(ctx).
		Table("room_users").
		Select("room_users.user_id, users.name, users.image, room_users.score").
		Joins("JOIN users ON users.id = room_users.user_id").
		Where("room_users.room_id = ?", roomID).
		Order("room_users.joined_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	participants := make([]*domain.Participant, 0, len(rows))
	for _, row := range rows {
		avatar := ""
		if row.Image != nil {
			avatar = *row.Image
		}
		participants = append(participants, &domain.Participant{
			ID:          row.UserID,
			DisplayName: row.Name,
			AvatarURL:   avatar,
			Score:       row.Score,
		})
	}

	return participants, nil
}

func (r *PostgresMembershipRepository) GetScore(ctx context.Context, roomID uuid.UUID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var member model.RoomUser
	err := r.db.WithContext(ctx).First(&member, "room_id = ? AND user_id = ?", roomID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrMemberNotFound
		}
		return 0, err
	}

	return member.Score, nil
}

func (r *PostgresMembershipRepository) UpdateScore(ctx context.Context, roomID uuid.UUID, userID string, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.RoomUser{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"score": score, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMembershipRepository) UpdateTotalScores(ctx context.Context, roomID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members []model.RoomUser
		if err := tx.Where("room_id = ?", roomID).Find(&members).Error; err != nil {
			return err
		}

		for _, member := range members {
			res := tx.Model(&model.User{}).
				Where("id = ?", member.UserID).
				Update("total_score", gorm.Expr("total_score + ?", member.Score))
			if res.Error != nil {
				return res.Error
			}
		}

		return nil
	})
}

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelUser(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	updates := map[string]any{
		"name":        userModel.Name,
		"total_score": userModel.TotalScore,
		"is_guest":    userModel.IsGuest,
		"updated_at":  userModel.UpdatedAt,
	}
	if userModel.Image == nil {
		updates["image"] = gorm.Expr("NULL")
	} else {
		updates["image"] = userModel.Image
	}
	if userModel.Bio == nil {
		updates["bio"] = gorm.Expr("NULL")
	} else {
		updates["bio"] = userModel.Bio
	}

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userModel.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

type PostgresFollowRepository struct {
	db *gorm.DB
}

func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edge := model.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Create(&edge).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Following twice keeps the original edge.
		return nil
	}
	return err
}

func (r *PostgresFollowRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Follow{}, "follower_id = ? AND followee_id = ?", followerID, followeeID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFollowNotFound
	}
	return nil
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *PostgresFollowRepository) ListFollowers(ctx context.Context, userID string) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.User
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", userID).
		Order("follows.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return toDomainUsers(rows), nil
}

func (r *PostgresFollowRepository) ListFollowing(ctx context.Context, userID string) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.User
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return toDomainUsers(rows), nil
}

func toModelRoom(room *domain.Room) *model.Room {
	return &model.Room{
		ID:        room.ID,
		Title:     room.Title,
		SubTitle:  room.SubTitle,
		Category:  room.Category,
		RankMode:  room.RankMode,
		Open:      room.Open,
		OwnerID:   room.OwnerID,
		CreatedAt: room.CreatedAt.UTC(),
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	return &domain.Room{
		ID:        room.ID,
		Title:     room.Title,
		SubTitle:  room.SubTitle,
		Category:  room.Category,
		RankMode:  room.RankMode,
		Open:      room.Open,
		OwnerID:   room.OwnerID,
		Peers:     make(map[string]*domain.Peer),
		CreatedAt: room.CreatedAt.UTC(),
	}
}

func toModelUser(user *domain.User) *model.User {
	var image *string
	if user.Image != "" {
		i := user.Image
		image = &i
	}
	var bio *string
	if user.Bio != "" {
		b := user.Bio
		bio = &b
	}
	return &model.User{
		ID:         user.ID,
		Name:       user.Name,
		Image:      image,
		Bio:        bio,
		TotalScore: user.TotalScore,
		IsGuest:    user.IsGuest,
		CreatedAt:  user.CreatedAt.UTC(),
		UpdatedAt:  user.UpdatedAt.UTC(),
	}
}

func toDomainUsers(rows []model.User) []*domain.User {
	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, toDomainUser(&rows[i]))
	}
	return users
}

func toDomainUser(user *model.User) *domain.User {
	image := ""
	if user.Image != nil {
		image = *user.Image
	}
	bio := ""
	if user.Bio != nil {
		bio = *user.Bio
	}

	return &domain.User{
		ID:         user.ID,
		Name:       user.Name,
		Image:      image,
		Bio:        bio,
		TotalScore: user.TotalScore,
		IsGuest:    user.IsGuest,
		CreatedAt:  user.CreatedAt.UTC(),
		UpdatedAt:  user.UpdatedAt.UTC(),
	}
}
