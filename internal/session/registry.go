package session

import (
	"fmt"
	"sync"
)

// LinkState tracks where one peer's negotiation stands.
type LinkState string

const (
	LinkStateCreated         LinkState = "created"
	LinkStateOfferSent       LinkState = "offer-sent"
	LinkStateOfferReceived   LinkState = "offer-received"
	LinkStateAnswerExchanged LinkState = "answer-exchanged"
	LinkStateConnected       LinkState = "connected"
	LinkStateClosed          LinkState = "closed"
)

// PeerLink is one participant-pair media connection. At most one exists per
// remote participant; the registry enforces that.
type PeerLink struct {
	RemoteID string

	mu           sync.Mutex
	conn         MediaConnection
	state        LinkState
	offerPending bool
}

func (l *PeerLink) Conn() MediaConnection {
	return l.conn
}

func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *PeerLink) setState(state LinkState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == LinkStateClosed {
		// A closed link stays closed; late async results are no-ops.
		return
	}
	l.state = state
}

func (l *PeerLink) markOfferPending(pending bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offerPending = pending
}

func (l *PeerLink) OfferPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offerPending
}

// Registry owns every live PeerLink of the session.
type Registry struct {
	mu     sync.Mutex
	engine MediaEngine
	links  map[string]*PeerLink
}

func NewRegistry(engine MediaEngine) *Registry {
	return &Registry{
		engine: engine,
		links:  make(map[string]*PeerLink),
	}
}

// GetOrCreate returns the link for remoteID, constructing it on first use.
// The second return value reports whether a new link was created. Calling
// it repeatedly for the same id never duplicates the underlying connection.
func (r *Registry) GetOrCreate(remoteID string) (*PeerLink, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if link, ok := r.links[remoteID]; ok {
		return link, false, nil
	}

	conn, err := r.engine.NewConnection(remoteID)
	if err != nil {
		return nil, false, fmt.Errorf("create link for %s: %w", remoteID, err)
	}

	link := &PeerLink{
		RemoteID: remoteID,
		conn:     conn,
		state:    LinkStateCreated,
	}
	r.links[remoteID] = link
	return link, true, nil
}

func (r *Registry) Get(remoteID string) (*PeerLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[remoteID]
	return link, ok
}

func (r *Registry) Has(remoteID string) bool {
	_, ok := r.Get(remoteID)
	return ok
}

// Close tears down the link for remoteID and removes it. Safe to call for
// unknown ids and safe to call twice.
func (r *Registry) Close(remoteID string) {
	r.mu.Lock()
	link, ok := r.links[remoteID]
	if ok {
		delete(r.links, remoteID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	link.mu.Lock()
	link.state = LinkStateClosed
	link.mu.Unlock()
	link.conn.Close()
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	links := make([]*PeerLink, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, link)
	}
	r.links = make(map[string]*PeerLink)
	r.mu.Unlock()

	for _, link := range links {
		link.mu.Lock()
		link.state = LinkStateClosed
		link.mu.Unlock()
		link.conn.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}
