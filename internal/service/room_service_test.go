package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc    *RoomService
	scores *ScoreService
	rooms  *repository.InMemoryRoomRepository
	users  *repository.InMemoryUserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPresence(t, nil)
}

func newTestEnvWithPresence(t *testing.T, tracker PresenceTracker) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewInMemoryUserRepository()
	rooms := repository.NewInMemoryRoomRepository()
	members := repository.NewInMemoryMembershipRepository(users)
	scores := NewScoreService(members, log)

	return &testEnv{
		svc:    NewRoomService(rooms, members, users, scores, tracker, log),
		scores: scores,
		rooms:  rooms,
		users:  users,
	}
}

type fakePresence struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	listErr error
}

func newFakePresence() *fakePresence {
	return &fakePresence{sets: make(map[string]map[string]struct{})}
}

func (f *fakePresence) Track(_ context.Context, roomID, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.sets[roomID]
	if !ok {
		set = make(map[string]struct{})
		f.sets[roomID] = set
	}
	set[participantID] = struct{}{}
	return nil
}

func (f *fakePresence) Forget(_ context.Context, roomID, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sets[roomID], participantID)
	return nil
}

func (f *fakePresence) List(_ context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	ids := make([]string, 0, len(f.sets[roomID]))
	for id := range f.sets[roomID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakePresence) Clear(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sets, roomID)
	return nil
}

func (e *testEnv) createRoom(t *testing.T, ownerID string) *domain.Room {
	t.Helper()
	room, err := e.svc.CreateRoom(context.Background(), "open mic night", "", "music", false, ownerID)
	require.NoError(t, err)
	return room
}

func (e *testEnv) register(t *testing.T, roomID uuid.UUID, id, name string) *domain.Peer {
	t.Helper()
	peer, err := e.svc.RegisterPeer(context.Background(), roomID, domain.NewUser(id, name, ""))
	require.NoError(t, err)
	return peer
}

func nextEvent(t *testing.T, peer *domain.Peer) domain.Envelope {
	t.Helper()
	select {
	case env, ok := <-peer.Events:
		require.True(t, ok, "events channel closed")
		return env
	default:
		t.Fatalf("no event queued for %s", peer.ID)
		return domain.Envelope{}
	}
}

func assertNoEvent(t *testing.T, peer *domain.Peer) {
	t.Helper()
	select {
	case env := <-peer.Events:
		t.Fatalf("unexpected %s event for %s", env.Action, peer.ID)
	default:
	}
}

func TestCreateRoomValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateRoom(ctx, "", "", "", false, "alice")
	require.Error(t, err)

	_, err = env.svc.CreateRoom(ctx, "open mic night", "", "", false, "")
	require.Error(t, err)

	room, err := env.svc.CreateRoom(ctx, "open mic night", "round two", "music", true, "alice")
	require.NoError(t, err)
	assert.True(t, room.Open)
	assert.True(t, room.RankMode)
	assert.Equal(t, "alice", room.OwnerID)
}

func TestJoinRoomBroadcastsToOthersOnly(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	alice := env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")

	err := env.svc.HandleSignal(context.Background(), room.ID, "bob", &domain.Envelope{Action: domain.ActionJoinRoom})
	require.NoError(t, err)

	got := nextEvent(t, alice)
	assert.Equal(t, domain.ActionUserJoined, got.Action)
	assert.Equal(t, "bob", got.UserID)
	assert.Equal(t, "Bob", got.Payload["display_name"])

	// the newcomer itself learns nothing from its own announcement
	assertNoEvent(t, bob)
}

func TestRegisterPeerOnClosedRoom(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")
	require.NoError(t, env.svc.CloseRoom(context.Background(), room.ID))

	_, err := env.svc.RegisterPeer(context.Background(), room.ID, domain.NewUser("bob", "Bob", ""))
	require.ErrorIs(t, err, ErrRoomClosed)
}

func TestRegisterPeerReplacesStaleSession(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	stale := env.register(t, room.ID, "bob", "Bob")
	fresh := env.register(t, room.ID, "bob", "Bob")

	_, ok := <-stale.Events
	assert.False(t, ok, "stale session's event channel is closed")

	require.NoError(t, env.svc.HandleSignal(context.Background(), room.ID, "bob", &domain.Envelope{Action: domain.ActionClap}))
	got := nextEvent(t, fresh)
	assert.Equal(t, domain.ActionClap, got.Action)
}

func TestTargetedSignalForwarding(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	alice := env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")
	carol := env.register(t, room.ID, "carol", "Carol")

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	err := env.svc.HandleSignal(context.Background(), room.ID, "alice", &domain.Envelope{
		Action:   domain.ActionOffer,
		TargetID: "bob",
		Offer:    &offer,
	})
	require.NoError(t, err)

	got := nextEvent(t, bob)
	assert.Equal(t, domain.ActionOffer, got.Action)
	assert.Equal(t, "alice", got.UserID, "relay stamps the sender")
	assert.Equal(t, room.ID.String(), got.RoomID)
	require.NotNil(t, got.Offer)

	assertNoEvent(t, alice)
	assertNoEvent(t, carol)
}

func TestTargetedSignalWithoutTargetDropped(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")

	// no target id
	err := env.svc.HandleSignal(context.Background(), room.ID, "alice", &domain.Envelope{Action: domain.ActionICECandidate})
	require.NoError(t, err)

	// unknown target
	err = env.svc.HandleSignal(context.Background(), room.ID, "alice", &domain.Envelope{
		Action:   domain.ActionICECandidate,
		TargetID: "nobody",
	})
	require.NoError(t, err, "a vanished target is not the sender's error")

	assertNoEvent(t, bob)
}

func TestChatMessagePersistedAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	alice := env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")

	err := env.svc.HandleSignal(context.Background(), room.ID, "bob", &domain.Envelope{
		Action:  domain.ActionChatMessage,
		Message: &domain.ChatPayload{Sender: "Bobby", Text: "  what a performance!  "},
	})
	require.NoError(t, err)

	for _, peer := range []*domain.Peer{alice, bob} {
		got := nextEvent(t, peer)
		assert.Equal(t, domain.ActionChatMessage, got.Action)
		require.NotNil(t, got.Message)
		assert.Equal(t, "Bobby", got.Message.Sender)
		assert.Equal(t, "what a performance!", got.Message.Text)
	}

	history, err := env.svc.ChatHistory(context.Background(), room.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "bob", history[0].SenderID)
	assert.Equal(t, "Bobby", history[0].DisplayName)
	assert.Equal(t, "what a performance!", history[0].Content)
}

func TestChatMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")
	env.register(t, room.ID, "alice", "Alice")
	ctx := context.Background()

	err := env.svc.HandleSignal(ctx, room.ID, "alice", &domain.Envelope{Action: domain.ActionChatMessage})
	require.Error(t, err)

	err = env.svc.HandleSignal(ctx, room.ID, "alice", &domain.Envelope{
		Action:  domain.ActionChatMessage,
		Message: &domain.ChatPayload{Text: "   "},
	})
	require.Error(t, err)
}

func TestTurnEventsReachEveryPeerIncludingSender(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	alice := env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")

	err := env.svc.HandleSignal(context.Background(), room.ID, "alice", &domain.Envelope{
		Action:   domain.ActionStart,
		TargetID: "bob",
	})
	require.NoError(t, err)

	// the sender folds its own event too, so every client sees the same
	// sequence
	for _, peer := range []*domain.Peer{alice, bob} {
		got := nextEvent(t, peer)
		assert.Equal(t, domain.ActionStart, got.Action)
		assert.Equal(t, "alice", got.UserID)
		assert.Equal(t, "bob", got.TargetID)
	}
}

func TestEndGameAggregatesTotalsAndClosesRoom(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")
	ctx := context.Background()

	alice := env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")

	require.NoError(t, env.scores.UpdateScore(ctx, room.ID, "bob", 8))
	require.NoError(t, env.scores.UpdateScore(ctx, room.ID, "bob", 7))

	err := env.svc.HandleSignal(ctx, room.ID, "alice", &domain.Envelope{Action: domain.ActionEndGame})
	require.NoError(t, err)

	for _, peer := range []*domain.Peer{alice, bob} {
		got := nextEvent(t, peer)
		assert.Equal(t, domain.ActionEndGame, got.Action)
	}

	user, err := env.users.GetByID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 15, user.TotalScore, "room scores folded into the cumulative total")

	stored, err := env.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, stored.Open)
}

func TestUnregisterPeerBroadcastsLeave(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	alice := env.register(t, room.ID, "alice", "Alice")
	env.register(t, room.ID, "bob", "Bob")

	require.NoError(t, env.svc.UnregisterPeer(context.Background(), room.ID, "bob"))

	got := nextEvent(t, alice)
	assert.Equal(t, domain.ActionLeaveRoom, got.Action)
	assert.Equal(t, "bob", got.UserID)

	participants, err := env.svc.ListParticipants(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].ID)
}

func TestHandleSignalUnknownPeer(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	err := env.svc.HandleSignal(context.Background(), room.ID, "stranger", &domain.Envelope{Action: domain.ActionClap})
	require.ErrorIs(t, err, ErrPeerNotFound)
}

func TestClientSentUserJoinedIgnored(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")

	alice := env.register(t, room.ID, "alice", "Alice")
	bob := env.register(t, room.ID, "bob", "Bob")

	err := env.svc.HandleSignal(context.Background(), room.ID, "bob", &domain.Envelope{Action: domain.ActionUserJoined})
	require.NoError(t, err)

	assertNoEvent(t, alice)
	assertNoEvent(t, bob)
}

func TestScoreAccumulatesAcrossSubmissions(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, "alice")
	ctx := context.Background()

	env.register(t, room.ID, "bob", "Bob")

	require.NoError(t, env.scores.UpdateScore(ctx, room.ID, "bob", 6))
	require.NoError(t, env.scores.UpdateScore(ctx, room.ID, "bob", 9))

	score, err := env.scores.GetUserScoreInRoom(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 15, score)

	require.Error(t, env.scores.UpdateScore(ctx, room.ID, "bob", -1))
}

func TestListParticipantsNarrowsToLivePeers(t *testing.T) {
	tracker := newFakePresence()
	env := newTestEnvWithPresence(t, tracker)
	room := env.createRoom(t, "alice")
	ctx := context.Background()

	env.register(t, room.ID, "alice", "Alice")
	env.register(t, room.ID, "bob", "Bob")
	env.register(t, room.ID, "carol", "Carol")

	// Carol's socket dropped without an unregister: the membership row
	// survives but the presence mirror no longer lists her.
	require.NoError(t, tracker.Forget(ctx, room.ID.String(), "carol"))

	participants, err := env.svc.ListParticipants(ctx, room.ID)
	require.NoError(t, err)

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	// A wiped mirror cannot be told apart from an expired one: the
	// authoritative membership record is served in full.
	require.NoError(t, tracker.Clear(ctx, room.ID.String()))

	participants, err = env.svc.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 3)
}

func TestListParticipantsDegradesWhenPresenceFails(t *testing.T) {
	tracker := newFakePresence()
	env := newTestEnvWithPresence(t, tracker)
	room := env.createRoom(t, "alice")
	ctx := context.Background()

	env.register(t, room.ID, "alice", "Alice")
	env.register(t, room.ID, "bob", "Bob")

	tracker.listErr = errors.New("connection refused")

	participants, err := env.svc.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}
