package session

import (
	"errors"

	"github.com/pion/webrtc/v3"
)

// candidateQueue buffers ICE candidates that arrive before the remote
// description of their link is known. Relay fan-out can reorder a
// candidate ahead of its offer or answer; buffering instead of dropping is
// what keeps negotiation alive in that case.
type candidateQueue struct {
	pending map[string][]webrtc.ICECandidateInit
}

func newCandidateQueue() *candidateQueue {
	return &candidateQueue{pending: make(map[string][]webrtc.ICECandidateInit)}
}

// EnqueueOrApply applies the candidate immediately when the link already
// has a remote description, otherwise buffers it in receipt order.
func (q *candidateQueue) EnqueueOrApply(remoteID string, candidate webrtc.ICECandidateInit, link *PeerLink) error {
	if link != nil && link.Conn().HasRemoteDescription() {
		return link.Conn().AddICECandidate(candidate)
	}

	q.pending[remoteID] = append(q.pending[remoteID], candidate)
	return nil
}

// Flush applies every buffered candidate for remoteID in arrival order and
// clears the buffer. Called exactly once, right after the link's remote
// description is set. A failed candidate does not block the ones behind it.
func (q *candidateQueue) Flush(remoteID string, link *PeerLink) error {
	buffered := q.pending[remoteID]
	delete(q.pending, remoteID)

	var errs []error
	for _, candidate := range buffered {
		if err := link.Conn().AddICECandidate(candidate); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Drop discards the buffer for a departed participant.
func (q *candidateQueue) Drop(remoteID string) {
	delete(q.pending, remoteID)
}

func (q *candidateQueue) Len(remoteID string) int {
	return len(q.pending[remoteID])
}
