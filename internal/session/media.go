package session

import "github.com/pion/webrtc/v3"

// MediaConnection is the slice of a peer connection the signaling core
// needs. The pion-backed implementation lives in pion.go; tests drive the
// controller with fakes.
type MediaConnection interface {
	// CreateOffer builds an SDP offer and installs it as the local
	// description before returning it.
	CreateOffer() (webrtc.SessionDescription, error)
	// CreateAnswer installs the remote offer, builds an answer and installs
	// it as the local description before returning it.
	CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	HasRemoteDescription() bool
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	// OnICECandidate registers the callback for locally gathered candidates.
	// A gathered candidate always goes out as an ice-candidate envelope
	// targeted at this connection's remote participant.
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	Close() error
}

// MediaEngine mints one MediaConnection per remote participant, with the
// local capture tracks already attached.
type MediaEngine interface {
	NewConnection(remoteID string) (MediaConnection, error)
}
