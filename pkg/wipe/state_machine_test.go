// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package wipe

import (
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateMachine(t *testing.T) *StateMachine {
	t.Helper()
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test")
	require.NoError(t, err)
	return NewStateMachine(log)
}

func TestStateMachineCanTransition(t *testing.T) {
	sm := newTestStateMachine(t)

	cases := []struct {
		name     string
		from, to State
		want     bool
	}{
		{"PendingToRunning", StatePending, StateRunning, true},
		{"PendingToCancelled", StatePending, StateCancelled, true},
		{"PendingToCompleted", StatePending, StateCompleted, false},
		{"RunningToVerifying", StateRunning, StateVerifying, true},
		{"RunningToRunningForFallback", StateRunning, StateRunning, true},
		{"RunningToFailed", StateRunning, StateFailed, true},
		{"VerifyingToCompleted", StateVerifying, StateCompleted, true},
		{"VerifyingToFailed", StateVerifying, StateFailed, true},
		{"CompletedIsTerminal", StateCompleted, StateRunning, false},
		{"FailedIsTerminal", StateFailed, StateRunning, false},
		{"CancelledIsTerminal", StateCancelled, StateRunning, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sm.CanTransition(tc.from, tc.to))
		})
	}
}

func TestStateMachineTransition(t *testing.T) {
	sm := newTestStateMachine(t)

	t.Run("ValidTransitionUpdatesOperation", func(t *testing.T) {
		op := &Operation{ID: "op-1", State: StatePending}
		err := sm.Transition(op, StateRunning, "start")
		require.NoError(t, err)
		assert.Equal(t, StateRunning, op.State)
		assert.Nil(t, op.EndedAt)
	})

	t.Run("TerminalTransitionSetsEndedAt", func(t *testing.T) {
		op := &Operation{ID: "op-2", State: StateVerifying}
		err := sm.Transition(op, StateCompleted, "verified")
		require.NoError(t, err)
		require.NotNil(t, op.EndedAt)
	})

	t.Run("InvalidTransitionReturnsError", func(t *testing.T) {
		op := &Operation{ID: "op-3", State: StateCompleted}
		err := sm.Transition(op, StateRunning, "should fail")
		require.Error(t, err)
		assert.Equal(t, StateCompleted, op.State)
	})
}

func TestStateMachineGetNextStates(t *testing.T) {
	sm := newTestStateMachine(t)

	assert.ElementsMatch(t, []State{StateRunning, StateCancelled}, sm.GetNextStates(StatePending))
	assert.Empty(t, sm.GetNextStates(StateCompleted))
}
