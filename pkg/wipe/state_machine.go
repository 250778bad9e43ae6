// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package wipe

import (
	"fmt"
	"time"

	"github.com/stratastor/logger"

	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

// StateMachine validates WipeOperation state transitions against the
// forward-only lifecycle:
//
//	pending --start--> running --P2 ok--> verifying --P3 ok--> completed
//	   \                 \                   \
//	    \                 \ --recoverable--> running (new strategy, once)
//	     \                 \                   \
//	      `--cancel--> cancelled               `--P3 fail--> failed
//	                         \
//	                          `--unrecoverable--> failed
//
// CanTransition must be checked before any state change is applied.
type StateMachine struct {
	logger      logger.Logger
	transitions map[State][]State
}

// NewStateMachine builds a StateMachine with the lifecycle above wired
// in.
func NewStateMachine(l logger.Logger) *StateMachine {
	sm := &StateMachine{
		logger:      l,
		transitions: make(map[State][]State),
	}
	sm.defineTransitions()
	return sm
}

func (sm *StateMachine) defineTransitions() {
	sm.transitions[StatePending] = []State{StateRunning, StateCancelled}

	// running→running models the single permitted fallback retry; the
	// executor is responsible for only taking this edge once per
	// operation (see Operation.fallbackUsed).
	sm.transitions[StateRunning] = []State{
		StateRunning,
		StateVerifying,
		StateFailed,
		StateCancelled,
	}

	sm.transitions[StateVerifying] = []State{
		StateCompleted,
		StateFailed,
		StateCancelled,
	}

	sm.transitions[StateCompleted] = []State{}
	sm.transitions[StateFailed] = []State{}
	sm.transitions[StateCancelled] = []State{}
}

// CanTransition reports whether moving from oldState to newState is
// permitted by the lifecycle diagram.
func (sm *StateMachine) CanTransition(oldState, newState State) bool {
	validNext, exists := sm.transitions[oldState]
	if !exists {
		return false
	}
	for _, s := range validNext {
		if s == newState {
			return true
		}
	}
	return false
}

// Transition validates and applies a state change to op, stamping
// EndedAt when the new state is terminal.
func (sm *StateMachine) Transition(op *Operation, newState State, reason string) error {
	if !sm.CanTransition(op.State, newState) {
		return vwerrors.New(vwerrors.ExecutorInvalidTransition,
			fmt.Sprintf("invalid wipe operation transition: %s -> %s", op.State, newState)).
			WithMetadata("operation_id", op.ID).
			WithMetadata("old_state", string(op.State)).
			WithMetadata("new_state", string(newState))
	}

	sm.logger.Info("wipe operation state transition",
		"operation_id", op.ID,
		"old_state", op.State,
		"new_state", newState,
		"reason", reason)

	op.State = newState
	if newState.IsTerminal() {
		now := time.Now().UTC()
		op.EndedAt = &now
	}
	return nil
}

// GetNextStates returns the states reachable from currentState.
func (sm *StateMachine) GetNextStates(currentState State) []State {
	next, exists := sm.transitions[currentState]
	if !exists {
		return []State{}
	}
	result := make([]State, len(next))
	copy(result, next)
	return result
}
