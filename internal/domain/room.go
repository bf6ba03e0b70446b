package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is a talent-show stage. The persisted half (title, rank mode, open
// flag, owner) lives in the repository; Peers tracks the live signaling
// sessions while the room is active on this relay.
type Room struct {
	Mutex     sync.RWMutex
	ID        uuid.UUID
	Title     string
	SubTitle  string
	Category  string
	RankMode  bool
	Open      bool
	OwnerID   string
	Peers     map[string]*Peer
	CreatedAt time.Time
}

// NewRoom constructs an open room owned by the given user.
func NewRoom(title, subTitle, category string, rankMode bool, ownerID string) *Room {
	return &Room{
		ID:        uuid.New(),
		Title:     title,
		SubTitle:  subTitle,
		Category:  category,
		RankMode:  rankMode,
		Open:      true,
		OwnerID:   ownerID,
		Peers:     make(map[string]*Peer),
		CreatedAt: time.Now().UTC(),
	}
}

// Participant is one row of a room's authoritative membership record:
// who is in the room and their score for the current game.
type Participant struct {
	ID          string `json:"user_id"`
	DisplayName string `json:"user_name"`
	AvatarURL   string `json:"user_image"`
	Score       int    `json:"score"`
}
