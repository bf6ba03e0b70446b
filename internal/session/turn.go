package session

import (
	"sort"
	"sync"

	"github.com/seojin-dev/stageline/internal/domain"
)

// Phase of the shared performance protocol.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseAwaitingStart Phase = "awaiting-start"
	PhasePerforming    Phase = "performing"
	PhaseScoring       Phase = "scoring"
	PhaseFinished      Phase = "finished"
)

// TurnEvent is one room-broadcast protocol event. Kind is start, end or
// endGame; clap and mirrorball never reach the machine because they carry
// no state.
type TurnEvent struct {
	Kind     domain.ActionKind
	UserID   string
	TargetID string
}

// TurnMachine replicates the room's turn/scoring state on this client.
// There is no central arbiter: every client folds the same broadcast
// sequence, so every transition below must be deterministic in the event
// and the roster it is applied against.
type TurnMachine struct {
	mu             sync.RWMutex
	phase          Phase
	performerID    string
	pendingScorers map[string]struct{}
	performed      map[string]struct{}
}

func NewTurnMachine() *TurnMachine {
	return &TurnMachine{
		phase:          PhaseLobby,
		pendingScorers: make(map[string]struct{}),
		performed:      make(map[string]struct{}),
	}
}

// Apply folds one broadcast event into the state. Events that do not match
// the current phase are ignored, not errors: a client that missed context
// must not diverge further by guessing. Returns true when the state
// changed.
func (m *TurnMachine) Apply(ev TurnEvent, roster []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case domain.ActionStart:
		if m.phase != PhaseLobby && m.phase != PhaseAwaitingStart {
			return false
		}
		if ev.TargetID == "" {
			return false
		}
		m.phase = PhasePerforming
		m.performerID = ev.TargetID
		return true

	case domain.ActionEnd:
		if m.phase != PhasePerforming || ev.UserID != m.performerID {
			return false
		}
		m.phase = PhaseScoring
		m.pendingScorers = make(map[string]struct{}, len(roster))
		for _, id := range roster {
			if id != m.performerID {
				m.pendingScorers[id] = struct{}{}
			}
		}
		m.performed[m.performerID] = struct{}{}
		if len(m.pendingScorers) == 0 {
			// Nobody left to score: solo room.
			m.phase = PhaseAwaitingStart
			m.performerID = ""
		}
		return true

	case domain.ActionEndGame:
		if m.phase == PhaseFinished {
			return false
		}
		m.phase = PhaseFinished
		m.performerID = ""
		m.pendingScorers = make(map[string]struct{})
		return true
	}

	return false
}

// MarkScored records that a scorer has submitted. When the pending set
// drains, the round is over and the owner may start the next performer.
func (m *TurnMachine) MarkScored(participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseScoring {
		return false
	}
	if _, ok := m.pendingScorers[participantID]; !ok {
		return false
	}

	delete(m.pendingScorers, participantID)
	if len(m.pendingScorers) == 0 {
		m.phase = PhaseAwaitingStart
		m.performerID = ""
	}
	return true
}

func (m *TurnMachine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

func (m *TurnMachine) Performer() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.performerID
}

func (m *TurnMachine) IsPendingScorer(participantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pendingScorers[participantID]
	return ok
}

func (m *TurnMachine) PendingScorers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.pendingScorers))
	for id := range m.pendingScorers {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// RemainingPool lists roster members who have not performed yet; the owner
// picks the next performer from it.
func (m *TurnMachine) RemainingPool(roster []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(roster))
	for _, id := range roster {
		if _, ok := m.performed[id]; !ok {
			result = append(result, id)
		}
	}
	return result
}
