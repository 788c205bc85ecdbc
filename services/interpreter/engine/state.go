// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"sync"
)

// =============================================================================
// REPAIR LOOP STATES
// =============================================================================

// LoopState is one state of the repair loop's bounded state machine.
type LoopState string

const (
	// StateDrafted holds a current artifact awaiting dependency resolution.
	StateDrafted LoopState = "DRAFTED"

	// StateResolved has the artifact's dependency list.
	StateResolved LoopState = "RESOLVED"

	// StateInstalled has the install outcomes; failures are advisory.
	StateInstalled LoopState = "INSTALLED"

	// StateExecuted has a recorded execution result for this attempt.
	StateExecuted LoopState = "EXECUTED"

	// StateSucceeded is terminal: the script ran successfully.
	StateSucceeded LoopState = "SUCCEEDED"

	// StateNeedsRepair requests a corrected artifact from the collaborator.
	StateNeedsRepair LoopState = "NEEDS_REPAIR"

	// StateExhausted is terminal: repair budget spent, the collaborator
	// failed, or the caller cancelled.
	StateExhausted LoopState = "EXHAUSTED"
)

// String returns the state name.
func (s LoopState) String() string { return string(s) }

// IsTerminal reports whether the loop stops in this state.
func (s LoopState) IsTerminal() bool {
	return s == StateSucceeded || s == StateExhausted
}

// AllLoopStates returns every defined state.
func AllLoopStates() []LoopState {
	return []LoopState{
		StateDrafted, StateResolved, StateInstalled, StateExecuted,
		StateSucceeded, StateNeedsRepair, StateExhausted,
	}
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// StateMachine enforces the repair loop's transition graph:
//
//	DRAFTED → RESOLVED          : Dependency resolution ran
//	RESOLVED → INSTALLED        : Install pass completed (failures advisory)
//	INSTALLED → EXECUTED        : Execution result recorded
//	EXECUTED → SUCCEEDED        : Execution succeeded
//	EXECUTED → NEEDS_REPAIR     : Execution failed, repair budget remains
//	EXECUTED → EXHAUSTED        : Execution failed, budget spent
//	NEEDS_REPAIR → DRAFTED      : Collaborator produced a new version
//	NEEDS_REPAIR → EXHAUSTED    : Collaborator failed
//	* → EXHAUSTED               : Caller cancelled the session
//
// NEEDS_REPAIR → DRAFTED is the only backward edge; expressing the loop as a
// bounded iterative machine rather than recursion keeps the attempt bound and
// cancellation checks centralized.
//
// Thread Safety: Safe for concurrent use.
type StateMachine struct {
	mu          sync.RWMutex
	transitions map[LoopState]map[LoopState]bool
}

// NewStateMachine creates a state machine with all valid transitions.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[LoopState]map[LoopState]bool)}
	for _, state := range AllLoopStates() {
		sm.transitions[state] = make(map[LoopState]bool)
	}

	sm.addTransition(StateDrafted, StateResolved)
	sm.addTransition(StateResolved, StateInstalled)
	sm.addTransition(StateInstalled, StateExecuted)

	sm.addTransition(StateExecuted, StateSucceeded)
	sm.addTransition(StateExecuted, StateNeedsRepair)
	sm.addTransition(StateExecuted, StateExhausted)

	sm.addTransition(StateNeedsRepair, StateDrafted)
	sm.addTransition(StateNeedsRepair, StateExhausted)

	// Cancellation can land in EXHAUSTED from any non-terminal state.
	for _, state := range AllLoopStates() {
		if !state.IsTerminal() {
			sm.addTransition(state, StateExhausted)
		}
	}

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to LoopState) {
	sm.transitions[from][to] = true
}

// CanTransition checks if a transition is valid.
//
// Thread Safety: Safe for concurrent use.
func (sm *StateMachine) CanTransition(from, to LoopState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// Transition validates and returns the new state.
//
// Outputs:
//
//	error - ErrInvalidTransition when the edge is not in the graph
func (sm *StateMachine) Transition(from, to LoopState) (LoopState, error) {
	if !sm.CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// ValidTransitionsFrom returns all valid target states.
func (sm *StateMachine) ValidTransitionsFrom(from LoopState) []LoopState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []LoopState
	for state, valid := range sm.transitions[from] {
		if valid {
			result = append(result, state)
		}
	}
	return result
}

// defaultStateMachine is the shared instance used by repair loops.
var defaultStateMachine = NewStateMachine()
