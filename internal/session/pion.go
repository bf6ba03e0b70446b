package session

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// RemoteTrackHandler receives decoded remote media keyed by the remote
// participant id. Rendering is the host application's concern.
type RemoteTrackHandler func(remoteID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

// ConnectionStateHandler observes per-peer connection state transitions.
type ConnectionStateHandler func(remoteID string, state webrtc.PeerConnectionState)

// PionEngine builds real peer connections. Local tracks come from whatever
// captured them; the engine only attaches.
type PionEngine struct {
	stunServers []string
	localTracks []webrtc.TrackLocal
	onTrack     RemoteTrackHandler
	onState     ConnectionStateHandler
}

func NewPionEngine(stunServers []string, localTracks []webrtc.TrackLocal, onTrack RemoteTrackHandler, onState ConnectionStateHandler) *PionEngine {
	return &PionEngine{
		stunServers: stunServers,
		localTracks: localTracks,
		onTrack:     onTrack,
		onState:     onState,
	}
}

func (e *PionEngine) NewConnection(remoteID string) (MediaConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: e.stunServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	for _, track := range e.localTracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("attach local track: %w", err)
		}
	}

	if e.onTrack != nil {
		pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			e.onTrack(remoteID, track, receiver)
		})
	}

	if e.onState != nil {
		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			e.onState(remoteID, state)
		})
	}

	return &pionConnection{pc: pc}, nil
}

type pionConnection struct {
	pc *webrtc.PeerConnection
}

func (c *pionConnection) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return *c.pc.LocalDescription(), nil
}

func (c *pionConnection) CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return *c.pc.LocalDescription(), nil
}

func (c *pionConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConnection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *pionConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConnection) Close() error {
	return c.pc.Close()
}
