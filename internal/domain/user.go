package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a performer profile. TotalScore is the cumulative score across
// finished games; per-room scores live on the room membership record.
type User struct {
	ID         string    `json:"user_id"`
	Name       string    `json:"user_name"`
	Image      string    `json:"user_image,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	TotalScore int       `json:"total_score"`
	IsGuest    bool      `json:"is_guest"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewGuestUser builds an ephemeral identity for an anonymous session.
func NewGuestUser(name string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New().String(),
		Name:      name,
		IsGuest:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewUser(id, name, image string) *User {
	now := time.Now().UTC()
	if id == "" {
		id = uuid.New().String()
	}
	return &User{
		ID:        id,
		Name:      name,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
