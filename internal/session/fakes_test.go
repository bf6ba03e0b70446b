package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/seojin-dev/stageline/internal/domain"
)

type fakeConn struct {
	mu          sync.Mutex
	remoteID    string
	hasRemote   bool
	offers      int
	applied     []webrtc.ICECandidateInit
	onCandidate func(webrtc.ICECandidateInit)
	closed      bool

	failCreateAnswer bool
	failAddCandidate bool
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offers++
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("v=0 offer-%d", c.offers),
	}, nil
}

func (c *fakeConn) CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCreateAnswer {
		return webrtc.SessionDescription{}, errors.New("sdp rejected")
	}
	c.hasRemote = true
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasRemote = true
	return nil
}

func (c *fakeConn) HasRemoteDescription() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasRemote
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAddCandidate {
		return errors.New("candidate rejected")
	}
	c.applied = append(c.applied, candidate)
	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCandidate = fn
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) appliedCandidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.applied...)
}

type fakeEngine struct {
	mu         sync.Mutex
	conns      map[string]*fakeConn
	failFor    map[string]bool
	answerFail map[string]bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		conns:      make(map[string]*fakeConn),
		failFor:    make(map[string]bool),
		answerFail: make(map[string]bool),
	}
}

func (e *fakeEngine) NewConnection(remoteID string) (MediaConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[remoteID] {
		return nil, errors.New("engine exhausted")
	}
	conn := &fakeConn{remoteID: remoteID, failCreateAnswer: e.answerFail[remoteID]}
	e.conns[remoteID] = conn
	return conn, nil
}

func (e *fakeEngine) conn(remoteID string) *fakeConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conns[remoteID]
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []domain.Envelope
	incoming chan domain.Envelope
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan domain.Envelope, 32)}
}

func (t *fakeTransport) Connect() error { return nil }

func (t *fakeTransport) Send(env domain.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *fakeTransport) Incoming() <-chan domain.Envelope { return t.incoming }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sentEnvelopes() []domain.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Envelope(nil), t.sent...)
}

func (t *fakeTransport) lastSent(kind domain.ActionKind) (domain.Envelope, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.sent) - 1; i >= 0; i-- {
		if t.sent[i].Action == kind {
			return t.sent[i], true
		}
	}
	return domain.Envelope{}, false
}

// fakeDirectory is both the RoomDirectory and the ScoreStore of a test
// session.
type fakeDirectory struct {
	mu            sync.Mutex
	room          RoomInfo
	participants  []domain.Participant
	removed       []string
	roomClosed    bool
	scores        map[string]int
	totalsUpdated bool
	listErr       error
}

func newFakeDirectory(room RoomInfo, participants ...domain.Participant) *fakeDirectory {
	return &fakeDirectory{
		room:         room,
		participants: participants,
		scores:       make(map[string]int),
	}
}

func (d *fakeDirectory) GetRoomByID(ctx context.Context, roomID string) (*RoomInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room := d.room
	return &room, nil
}

func (d *fakeDirectory) EnterRoom(ctx context.Context, roomID, userID string) error { return nil }

func (d *fakeDirectory) DeleteUserInRoom(ctx context.Context, roomID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, userID)
	return nil
}

func (d *fakeDirectory) GetAllUsersInRoom(ctx context.Context, roomID string) ([]domain.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]domain.Participant(nil), d.participants...), nil
}

func (d *fakeDirectory) CloseRoom(ctx context.Context, roomID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roomClosed = true
	return nil
}

func (d *fakeDirectory) GetUserScoreInRoom(ctx context.Context, roomID, userID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scores[userID], nil
}

func (d *fakeDirectory) UpdateScore(ctx context.Context, roomID, userID string, score int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scores[userID] += score
	return nil
}

func (d *fakeDirectory) UpdateTotalScores(ctx context.Context, roomID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalsUpdated = true
	return nil
}

func (d *fakeDirectory) removedUsers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.removed...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
