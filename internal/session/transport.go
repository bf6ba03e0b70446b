package session

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/seojin-dev/stageline/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrTransportClosed is returned by Send after the transport has shut down.
var ErrTransportClosed = errors.New("signaling transport closed")

// Transport is the persistent bidirectional channel to the relay. Envelope
// delivery order matches relay order. A closed Incoming channel means the
// session is over: there is no automatic reconnection, a reconnect is a
// fresh session with a fresh membership handshake.
type Transport interface {
	Connect() error
	Send(env domain.Envelope) error
	Incoming() <-chan domain.Envelope
	Close() error
}

// WSTransport talks to the relay over a websocket.
type WSTransport struct {
	serverURL string
	conn      *websocket.Conn
	incoming  chan domain.Envelope
	outgoing  chan domain.Envelope
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
}

func NewWSTransport(serverURL string) *WSTransport {
	return &WSTransport{
		serverURL: serverURL,
		incoming:  make(chan domain.Envelope, 32),
		outgoing:  make(chan domain.Envelope, 32),
		done:      make(chan struct{}),
	}
}

func (t *WSTransport) Connect() error {
	u, err := url.Parse(t.serverURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	t.conn = conn
	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.readPump()
	go t.writePump()

	return nil
}

func (t *WSTransport) readPump() {
	defer func() {
		t.conn.Close()
		close(t.incoming)
	}()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env domain.Envelope
		if err := t.conn.ReadJSON(&env); err != nil {
			return
		}

		// The consumer may have stopped draining; closing the connection
		// alone cannot unblock a channel send.
		select {
		case t.incoming <- env:
		case <-t.done:
			return
		}
	}
}

func (t *WSTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case env := <-t.outgoing:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (t *WSTransport) Send(env domain.Envelope) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	select {
	case t.outgoing <- env:
		return nil
	case <-t.done:
		return ErrTransportClosed
	}
}

func (t *WSTransport) Incoming() <-chan domain.Envelope {
	return t.incoming
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	close(t.done)
	return nil
}
