package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/internal/repository"
	"github.com/seojin-dev/stageline/lib/logger/sl"
)

var (
	ErrRoomClosed   = errors.New("room is closed")
	ErrPeerNotFound = errors.New("peer not found")
)

const (
	maxChatMessageLength = 4000
	maxChatHistory       = 200
)

type RoomService struct {
	rooms       repository.RoomRepository
	members     repository.MembershipRepository
	users       repository.UserRepository
	scores      ScoreInteractor
	presence    PresenceTracker
	log         *slog.Logger
	mu          sync.RWMutex
	activeRooms map[uuid.UUID]*domain.Room
}

func NewRoomService(
	rooms repository.RoomRepository,
	members repository.MembershipRepository,
	users repository.UserRepository,
	scores ScoreInteractor,
	presenceStore PresenceTracker,
	log *slog.Logger,
) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		rooms:       rooms,
		members:     members,
		users:       users,
		scores:      scores,
		presence:    presenceStore,
		log:         log,
		activeRooms: make(map[uuid.UUID]*domain.Room),
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, title, subTitle, category string, rankMode bool, ownerID string) (*domain.Room, error) {
	if title == "" {
		return nil, errors.New("room title is required")
	}
	if ownerID == "" {
		return nil, errors.New("owner is required")
	}

	room := domain.NewRoom(title, subTitle, category, rankMode, ownerID)
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.activeRooms[room.ID] = room
	s.mu.Unlock()

	s.log.Info("room created", "room_id", room.ID.String(), "owner", ownerID)
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if room := s.getActiveRoom(id); room != nil {
		return room, nil
	}

	roomFromDB, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.activateRoom(roomFromDB), nil
}

func (s *RoomService) ListOpenRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.rooms.ListOpen(ctx)
}

func (s *RoomService) CloseRoom(ctx context.Context, id uuid.UUID) error {
	if err := s.rooms.Close(ctx, id); err != nil {
		return err
	}

	if s.presence != nil {
		if err := s.presence.Clear(ctx, id.String()); err != nil {
			s.log.Warn("failed to clear presence", "room_id", id.String(), sl.Err(err))
		}
	}

	s.removeActiveRoom(id)
	return nil
}

func (s *RoomService) RegisterPeer(ctx context.Context, roomID uuid.UUID, user *domain.User) (*domain.Peer, error) {
	const op = "service.room.registerPeer"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID.String()),
	)

	if user == nil {
		return nil, errors.New("user is required")
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		log.Info("room lookup failed", sl.Err(err))
		return nil, err
	}
	if !room.Open {
		return nil, ErrRoomClosed
	}

	if err := s.ensureUser(ctx, user); err != nil {
		log.Error("ensure user failed", sl.Err(err))
		return nil, err
	}

	peer := domain.NewPeer(user.ID, user.Name, user.Image)

	room.Mutex.Lock()
	if existing, ok := room.Peers[peer.ID]; ok {
		// A stale session for the same identity is replaced, not doubled.
		if existing.Events != nil {
			close(existing.Events)
		}
		if existing.Socket != nil {
			existing.Socket.Close()
		}
	}
	room.Peers[peer.ID] = peer
	room.Mutex.Unlock()

	if err := s.members.AddUser(ctx, roomID, user.ID); err != nil {
		log.Error("failed to persist membership", sl.Err(err))
		return nil, err
	}

	if s.presence != nil {
		if err := s.presence.Track(ctx, roomID.String(), peer.ID); err != nil {
			log.Warn("presence track failed", sl.Err(err))
		}
	}

	log.Info("peer registered",
		"peer_id", peer.ID,
		"display_name", peer.DisplayName,
		"peers_count", s.peerCount(room),
	)
	return peer, nil
}

func (s *RoomService) UnregisterPeer(ctx context.Context, roomID uuid.UUID, peerID string) error {
	const op = "service.room.unregisterPeer"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID.String()),
		slog.String("peer_id", peerID),
	)

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	room.Mutex.Lock()
	peer, ok := room.Peers[peerID]
	if !ok {
		room.Mutex.Unlock()
		return ErrPeerNotFound
	}

	delete(room.Peers, peerID)
	roomEmpty := len(room.Peers) == 0
	room.Mutex.Unlock()

	peer.SetStatus(domain.PeerStatusDisconnected)
	if peer.Events != nil {
		close(peer.Events)
	}
	if peer.Socket != nil {
		peer.Socket.Close()
		peer.Socket = nil
	}

	if err := s.members.RemoveUser(ctx, roomID, peerID); err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
		log.Warn("failed to remove membership", sl.Err(err))
	}

	if s.presence != nil {
		if err := s.presence.Forget(ctx, roomID.String(), peerID); err != nil {
			log.Warn("presence forget failed", sl.Err(err))
		}
	}

	s.broadcast(room, domain.Envelope{
		Action: domain.ActionLeaveRoom,
		RoomID: room.ID.String(),
		UserID: peerID,
	}, peerID)

	if roomEmpty {
		s.removeActiveRoom(room.ID)
	}

	log.Info("peer unregistered")
	return nil
}

// HandleSignal applies one inbound envelope from a connected peer.
// Targeted negotiation kinds are forwarded to their target; room-wide kinds
// fan out to every peer so each client folds the same event sequence.
func (s *RoomService) HandleSignal(ctx context.Context, roomID uuid.UUID, peerID string, env *domain.Envelope) error {
	const op = "service.room.signal"
	if env == nil {
		return errors.New("envelope is required")
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID.String()),
		slog.String("peer_id", peerID),
		slog.String("action", string(env.Action)),
	)

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	room.Mutex.RLock()
	peer, ok := room.Peers[peerID]
	room.Mutex.RUnlock()
	if !ok {
		return ErrPeerNotFound
	}
	peer.Touch()

	forward := *env
	forward.RoomID = room.ID.String()
	forward.UserID = peer.ID

	switch env.Action {
	case domain.ActionOffer, domain.ActionAnswer, domain.ActionICECandidate:
		if forward.TargetID == "" {
			log.Warn("targeted action without target, dropped")
			return nil
		}
		room.Mutex.RLock()
		target, ok := room.Peers[forward.TargetID]
		room.Mutex.RUnlock()
		if !ok {
			log.Warn("target peer not found", "target_id", forward.TargetID)
			return nil
		}
		target.EnqueueEvent(forward)

	case domain.ActionJoinRoom:
		// The newcomer announces itself; everyone already present learns
		// about it and opens a negotiation toward the sender.
		s.broadcast(room, domain.Envelope{
			Action: domain.ActionUserJoined,
			RoomID: room.ID.String(),
			UserID: peer.ID,
			Payload: map[string]any{
				"display_name": peer.DisplayName,
				"avatar_url":   peer.AvatarURL,
			},
		}, peer.ID)

	case domain.ActionLeaveRoom:
		return s.UnregisterPeer(ctx, roomID, peerID)

	case domain.ActionChatMessage:
		text, err := validateChatText(env.Message)
		if err != nil {
			return err
		}

		chatMsg := domain.NewChatMessage(room.ID, peer, text)
		if env.Message.Sender != "" {
			chatMsg.DisplayName = env.Message.Sender
		}

		if err := s.rooms.SaveChatMessage(ctx, chatMsg); err != nil {
			log.Error("failed to save chat message", sl.Err(err))
		}

		forward.Message = &domain.ChatPayload{
			Sender: chatMsg.DisplayName,
			Text:   chatMsg.Content,
		}
		s.broadcastAll(room, forward)

	case domain.ActionClap, domain.ActionMirrorball:
		// Ephemeral cues, fire-and-forget.
		s.broadcastAll(room, forward)

	case domain.ActionStart, domain.ActionEnd:
		if peer.ID != room.OwnerID && env.Action == domain.ActionStart {
			// Ownership of start is a sender-side policy; the relay only
			// records the anomaly.
			log.Warn("start from non-owner", "owner", room.OwnerID)
		}
		s.broadcastAll(room, forward)

	case domain.ActionEndGame:
		s.broadcastAll(room, forward)

		if s.scores != nil {
			if err := s.scores.UpdateTotalScores(ctx, room.ID); err != nil {
				log.Error("failed to aggregate total scores", sl.Err(err))
			}
		}
		if err := s.CloseRoom(ctx, room.ID); err != nil {
			log.Error("failed to close room", sl.Err(err))
		}

	case domain.ActionUserJoined:
		// Relay-emitted only; a client sending it is a protocol violation.
		log.Warn("client sent relay-only action, ignored")

	default:
		log.Warn("unsupported signal action, ignored")
	}

	return nil
}

// ListParticipants returns the room's membership snapshot. When a presence
// mirror is available the snapshot is narrowed to peers with a live
// session; a mirror failure degrades to the full membership record.
func (s *RoomService) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	const op = "service.room.listParticipants"

	participants, err := s.members.ListUsers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if s.presence == nil {
		return participants, nil
	}

	live, err := s.presence.List(ctx, roomID.String())
	if err != nil {
		s.log.Warn("presence list failed, serving full membership",
			slog.String("op", op),
			slog.String("room_id", roomID.String()),
			sl.Err(err),
		)
		return participants, nil
	}
	if len(live) == 0 {
		// An empty set is indistinguishable from an expired one.
		return participants, nil
	}

	liveSet := make(map[string]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}

	snapshot := make([]*domain.Participant, 0, len(participants))
	for _, p := range participants {
		if _, ok := liveSet[p.ID]; ok {
			snapshot = append(snapshot, p)
		}
	}

	return snapshot, nil
}

// ChatHistory returns the room's latest chat messages in chronological
// order, so a late joiner can backfill the conversation.
func (s *RoomService) ChatHistory(ctx context.Context, roomID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > maxChatHistory {
		limit = maxChatHistory
	}
	return s.rooms.ListChatMessages(ctx, roomID, limit)
}

func (s *RoomService) ensureUser(ctx context.Context, user *domain.User) error {
	_, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return s.users.Create(ctx, user)
		}
		return err
	}
	return nil
}

func (s *RoomService) broadcast(room *domain.Room, env domain.Envelope, exclude string) {
	room.Mutex.RLock()
	peers := make([]*domain.Peer, 0, len(room.Peers))
	for id, peer := range room.Peers {
		if id == exclude {
			continue
		}
		peers = append(peers, peer)
	}
	room.Mutex.RUnlock()

	for _, peer := range peers {
		select {
		case peer.Events <- env:
		default:
			s.log.Debug("dropping broadcast event", slog.String("peer", peer.ID), slog.String("action", string(env.Action)))
		}
	}
}

func (s *RoomService) broadcastAll(room *domain.Room, env domain.Envelope) {
	s.broadcast(room, env, "")
}

func (s *RoomService) peerCount(room *domain.Room) int {
	room.Mutex.RLock()
	defer room.Mutex.RUnlock()
	return len(room.Peers)
}

func (s *RoomService) getActiveRoom(id uuid.UUID) *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRooms[id]
}

func (s *RoomService) removeActiveRoom(id uuid.UUID) {
	s.mu.Lock()
	delete(s.activeRooms, id)
	s.mu.Unlock()
}

func (s *RoomService) activateRoom(room *domain.Room) *domain.Room {
	if room == nil {
		return nil
	}

	if room.Peers == nil {
		room.Peers = make(map[string]*domain.Peer)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeRooms[room.ID]; existing != nil {
		return existing
	}

	s.activeRooms[room.ID] = room
	return room
}

func validateChatText(payload *domain.ChatPayload) (string, error) {
	if payload == nil {
		return "", errors.New("chat payload is required")
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return "", errors.New("chat message cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return "", errors.New("chat message is too long")
	}

	return text, nil
}
