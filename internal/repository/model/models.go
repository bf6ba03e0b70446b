package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Title     string     `gorm:"size:255;not null"`
	SubTitle  string     `gorm:"size:255"`
	Category  string     `gorm:"size:64"`
	RankMode  bool       `gorm:"not null"`
	Open      bool       `gorm:"not null;index"`
	OwnerID   string     `gorm:"size:64;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	Members   []RoomUser `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoomID"`
}

// RoomUser is one membership row: a user currently in a room plus their
// score for the game in progress.
type RoomUser struct {
	RoomID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"size:64;primaryKey"`
	Score     int       `gorm:"not null;default:0"`
	JoinedAt  time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type User struct {
	ID         string    `gorm:"size:64;primaryKey"`
	Name       string    `gorm:"size:255;not null"`
	Image      *string   `gorm:"size:512"`
	Bio        *string   `gorm:"size:1024"`
	TotalScore int       `gorm:"not null;default:0"`
	IsGuest    bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// Follow is one directed edge of the social graph: follower watches
// followee.
type Follow struct {
	FollowerID string    `gorm:"size:64;primaryKey"`
	FolloweeID string    `gorm:"size:64;primaryKey;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

type ChatMessage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID      uuid.UUID `gorm:"type:uuid;index;not null"`
	SenderID    string    `gorm:"size:64;not null"`
	DisplayName string    `gorm:"size:255"`
	Content     string    `gorm:"size:4000;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}
