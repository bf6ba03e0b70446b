package domain

import "github.com/pion/webrtc/v3"

// ActionKind is the discriminator of every signaling envelope.
type ActionKind string

const (
	ActionJoinRoom     ActionKind = "join-room"
	ActionUserJoined   ActionKind = "user-joined"
	ActionOffer        ActionKind = "offer"
	ActionAnswer       ActionKind = "answer"
	ActionICECandidate ActionKind = "ice-candidate"
	ActionLeaveRoom    ActionKind = "leave-room"
	ActionChatMessage  ActionKind = "chat-message"
	ActionClap         ActionKind = "clap"
	ActionMirrorball   ActionKind = "mirrorball"
	ActionStart        ActionKind = "start"
	ActionEnd          ActionKind = "end"
	ActionEndGame      ActionKind = "endGame"
)

// Targeted reports whether the action is a point-to-point negotiation
// message that must carry a target id.
func (k ActionKind) Targeted() bool {
	switch k {
	case ActionOffer, ActionAnswer, ActionICECandidate:
		return true
	}
	return false
}

// Known reports whether the kind belongs to the protocol at all.
func (k ActionKind) Known() bool {
	switch k {
	case ActionJoinRoom, ActionUserJoined, ActionOffer, ActionAnswer,
		ActionICECandidate, ActionLeaveRoom, ActionChatMessage,
		ActionClap, ActionMirrorball, ActionStart, ActionEnd, ActionEndGame:
		return true
	}
	return false
}

// ChatPayload is the body of a chat-message envelope.
type ChatPayload struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Envelope is the wire unit for every signaling exchange. TargetID is set
// for offer/answer/ice-candidate and for start (the performer being put on
// stage); all other kinds are room-wide broadcasts.
type Envelope struct {
	Action    ActionKind                 `json:"action"`
	RoomID    string                     `json:"roomId"`
	UserID    string                     `json:"userId"`
	TargetID  string                     `json:"targetId,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Message   *ChatPayload               `json:"message,omitempty"`
	Payload   map[string]any             `json:"payload,omitempty"`
}
