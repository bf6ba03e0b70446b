package session

import (
	"testing"

	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnMachineFullRound(t *testing.T) {
	m := NewTurnMachine()
	roster := []string{"alice", "bob", "carol"}

	require.Equal(t, PhaseLobby, m.Phase())

	changed := m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, roster)
	require.True(t, changed)
	require.Equal(t, PhasePerforming, m.Phase())
	require.Equal(t, "bob", m.Performer())

	changed = m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "bob"}, roster)
	require.True(t, changed)
	require.Equal(t, PhaseScoring, m.Phase())
	assert.Equal(t, []string{"alice", "carol"}, m.PendingScorers())

	require.True(t, m.MarkScored("alice"))
	require.Equal(t, PhaseScoring, m.Phase())

	require.True(t, m.MarkScored("carol"))
	require.Equal(t, PhaseAwaitingStart, m.Phase())
	require.Empty(t, m.Performer())
}

func TestTurnMachineIgnoresOutOfPhaseEvents(t *testing.T) {
	m := NewTurnMachine()
	roster := []string{"alice", "bob"}

	// end before any performance started
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "alice"}, roster))
	assert.Equal(t, PhaseLobby, m.Phase())

	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, roster))

	// start while someone is already performing
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "alice"}, roster))
	assert.Equal(t, "bob", m.Performer())

	// end from someone who is not the performer
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "alice"}, roster))
	assert.Equal(t, PhasePerforming, m.Phase())
}

func TestTurnMachineStartNeedsTarget(t *testing.T) {
	m := NewTurnMachine()
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice"}, []string{"alice"}))
	assert.Equal(t, PhaseLobby, m.Phase())
}

func TestTurnMachineSoloRoomSkipsScoring(t *testing.T) {
	m := NewTurnMachine()
	roster := []string{"alice"}

	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "alice"}, roster))
	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "alice"}, roster))

	assert.Equal(t, PhaseAwaitingStart, m.Phase())
	assert.Empty(t, m.PendingScorers())
}

func TestTurnMachineEndGameIsTerminal(t *testing.T) {
	m := NewTurnMachine()
	roster := []string{"alice", "bob"}

	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, roster))
	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionEndGame, UserID: "alice"}, roster))
	require.Equal(t, PhaseFinished, m.Phase())

	// nothing moves the machine out of finished
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, roster))
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "bob"}, roster))
	assert.False(t, m.Apply(TurnEvent{Kind: domain.ActionEndGame, UserID: "alice"}, roster))
	assert.Equal(t, PhaseFinished, m.Phase())
}

func TestTurnMachineMarkScoredGuards(t *testing.T) {
	m := NewTurnMachine()
	roster := []string{"alice", "bob", "carol"}

	assert.False(t, m.MarkScored("alice"), "scoring has not started")

	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, roster))
	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "bob"}, roster))

	assert.False(t, m.MarkScored("bob"), "performer is not a scorer")
	assert.True(t, m.MarkScored("alice"))
	assert.False(t, m.MarkScored("alice"), "double submission")
}

func TestTurnMachineRemainingPool(t *testing.T) {
	m := NewTurnMachine()
	roster := []string{"alice", "bob", "carol"}

	assert.Equal(t, roster, m.RemainingPool(roster))

	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, roster))
	require.True(t, m.Apply(TurnEvent{Kind: domain.ActionEnd, UserID: "bob"}, roster))

	assert.Equal(t, []string{"alice", "carol"}, m.RemainingPool(roster))
}

// Two machines fed the identical broadcast sequence must land in the
// identical state, whatever that sequence is.
func TestTurnMachineDeterministicReplication(t *testing.T) {
	roster := []string{"alice", "bob", "carol"}
	events := []TurnEvent{
		{Kind: domain.ActionStart, UserID: "alice", TargetID: "carol"},
		{Kind: domain.ActionEnd, UserID: "bob"},                      // ignored, wrong performer
		{Kind: domain.ActionEnd, UserID: "carol"},                    // scoring opens
		{Kind: domain.ActionStart, UserID: "alice", TargetID: "bob"}, // ignored, still scoring
		{Kind: domain.ActionEndGame, UserID: "alice"},
	}

	first := NewTurnMachine()
	second := NewTurnMachine()
	for _, ev := range events {
		assert.Equal(t, first.Apply(ev, roster), second.Apply(ev, roster))
	}

	assert.Equal(t, first.Phase(), second.Phase())
	assert.Equal(t, first.Performer(), second.Performer())
	assert.Equal(t, first.PendingScorers(), second.PendingScorers())
	assert.Equal(t, PhaseFinished, first.Phase())
}
