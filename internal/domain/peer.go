package domain

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type PeerStatus string

const (
	PeerStatusConnected    PeerStatus = "connected"
	PeerStatusConnecting   PeerStatus = "connecting"
	PeerStatusDisconnected PeerStatus = "disconnected"
)

// Peer is one live signaling session on the relay. Its Events channel is
// the fan-out point: the room service enqueues envelopes here and the
// websocket handler pumps them to the socket.
type Peer struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Status      PeerStatus
	JoinedAt    time.Time
	LastSeen    time.Time
	Mutex       sync.RWMutex
	Socket      *websocket.Conn
	Events      chan Envelope
}

func NewPeer(id, displayName, avatarURL string) *Peer {
	now := time.Now().UTC()
	return &Peer{
		ID:          id,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Status:      PeerStatusConnecting,
		JoinedAt:    now,
		LastSeen:    now,
		Events:      make(chan Envelope, 16),
	}
}

func (p *Peer) Touch() {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.LastSeen = time.Now().UTC()
}

func (p *Peer) EnqueueEvent(event Envelope) {
	select {
	case p.Events <- event:
	default:
	}
}

func (p *Peer) SetStatus(status PeerStatus) {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.Status = status
}
