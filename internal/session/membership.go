package session

import (
	"context"
	"sync"
)

// Member is one entry of the local membership view.
type Member struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Score       int
}

// MembershipView is this client's reconciled participant list, ordered by
// arrival. It is eventually consistent with the room directory: every
// join/leave event triggers a refresh, so transient divergence self-heals
// within one round trip.
type MembershipView struct {
	directory RoomDirectory
	roomID    string

	mu      sync.RWMutex
	order   []string
	members map[string]Member
}

func NewMembershipView(directory RoomDirectory, roomID string) *MembershipView {
	return &MembershipView{
		directory: directory,
		roomID:    roomID,
		members:   make(map[string]Member),
	}
}

// Refresh replaces the view with the authoritative record. Participants
// already known keep their arrival position; newcomers append in the order
// the directory reports them. On error the previous view stands.
func (v *MembershipView) Refresh(ctx context.Context) error {
	participants, err := v.directory.GetAllUsersInRoom(ctx, v.roomID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fresh := make(map[string]Member, len(participants))
	for _, p := range participants {
		fresh[p.ID] = Member{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
			Score:       p.Score,
		}
	}

	order := make([]string, 0, len(fresh))
	for _, id := range v.order {
		if _, ok := fresh[id]; ok {
			order = append(order, id)
		}
	}
	for _, p := range participants {
		if !contains(order, p.ID) {
			order = append(order, p.ID)
		}
	}

	v.order = order
	v.members = fresh
	return nil
}

func (v *MembershipView) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.members[id]; !ok {
		return
	}

	delete(v.members, id)
	order := v.order[:0]
	for _, existing := range v.order {
		if existing != id {
			order = append(order, existing)
		}
	}
	v.order = order
}

func (v *MembershipView) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.members[id]
	return ok
}

// Snapshot returns the members in arrival order.
func (v *MembershipView) Snapshot() []Member {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make([]Member, 0, len(v.order))
	for _, id := range v.order {
		result = append(result, v.members[id])
	}
	return result
}

// IDs returns the participant ids in arrival order.
func (v *MembershipView) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.order...)
}

func (v *MembershipView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.members)
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
