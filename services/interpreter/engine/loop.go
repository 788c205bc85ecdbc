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
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRepairs bounds repair attempts after the original run.
const DefaultMaxRepairs = 2

// =============================================================================
// PORTS
// =============================================================================

// Resolver resolves a script's imports. *DependencyResolver satisfies it.
type Resolver interface {
	Resolve(source string) []Dependency
}

// Ensurer makes dependencies available in an environment. *Installer
// satisfies it.
type Ensurer interface {
	Ensure(ctx context.Context, deps []Dependency) []InstallOutcome
}

// Runner executes one artifact. *Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, artifact *CodeArtifact) (*ExecutionResult, error)
}

// Generator is the repair side of the generation collaborator: it produces a
// corrected script from the previous source and a failure summary.
//
// Any failure from the generator is a GenerationError: the loop cannot
// proceed without a new artifact and seals the session immediately.
type Generator interface {
	Fix(ctx context.Context, source, errorSummary string) (code string, explanation string, err error)
}

// =============================================================================
// REPAIR LOOP
// =============================================================================

// RepairLoop orchestrates resolve → install → execute across bounded retries,
// requesting a fixed script from the generation collaborator when execution
// fails.
//
// Each session runs its attempts strictly sequentially: every step depends on
// the previous step's output, and the executor must fully observe one run
// before the loop can decide the next action. Independent sessions may run
// concurrently; they share only the environment, whose install lock the
// installer holds.
//
// Thread Safety: Safe for concurrent use; each Run owns its own session.
type RepairLoop struct {
	resolver   Resolver
	installer  Ensurer
	executor   Runner
	generator  Generator
	maxRepairs int
	sm         *StateMachine
	logger     *slog.Logger

	// onAttempt, when set, observes each attempt as it is recorded.
	onAttempt func(*Attempt)
}

// LoopOptions configures a RepairLoop.
type LoopOptions struct {
	Resolver  Resolver
	Installer Ensurer
	Executor  Runner
	Generator Generator

	// MaxRepairs bounds repairs after the original run.
	// 0 uses DefaultMaxRepairs; negative disables repairs entirely.
	MaxRepairs int

	Logger *slog.Logger

	// OnAttempt observes attempts as they complete (progress reporting,
	// transcripts). Called synchronously from the loop goroutine.
	OnAttempt func(*Attempt)
}

// NewRepairLoop creates a repair loop.
func NewRepairLoop(opts LoopOptions) *RepairLoop {
	maxRepairs := opts.MaxRepairs
	if maxRepairs == 0 {
		maxRepairs = DefaultMaxRepairs
	} else if maxRepairs < 0 {
		maxRepairs = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RepairLoop{
		resolver:   opts.Resolver,
		installer:  opts.Installer,
		executor:   opts.Executor,
		generator:  opts.Generator,
		maxRepairs: maxRepairs,
		sm:         defaultStateMachine,
		logger:     logger,
		onAttempt:  opts.OnAttempt,
	}
}

// Run drives one session from the caller-supplied artifact to a terminal
// status.
//
// Description:
//
//	Implements the state machine DRAFTED → RESOLVED → INSTALLED → EXECUTED
//	→ {SUCCEEDED, NEEDS_REPAIR, EXHAUSTED}, with NEEDS_REPAIR → DRAFTED as
//	the only backward edge. Install failures never block execution: a
//	package may already be satisfied under a different detection path, or
//	the failure may not touch the script's executed code path, so only the
//	execution outcome drives transitions. Timeouts consume a repair attempt
//	like any other execution failure. Per-attempt errors are recorded as
//	data on the session, never returned; the caller always receives a
//	complete sealed Session, even on total failure.
//
// Inputs:
//
//	ctx - Context for cancellation; cancellation kills any running child,
//	      releases the install lock, and seals the session as exhausted
//	      with a cancellation cause
//	request - The originating natural-language request (kept for archival
//	          and repair prompts; may be empty for direct execution)
//	artifact - The version-1 artifact to run
//
// Outputs:
//
//	*Session - The sealed session; non-nil whenever error is nil
//	error - Non-nil only for invalid arguments
//
// Thread Safety: Safe for concurrent use.
func (l *RepairLoop) Run(ctx context.Context, request string, artifact *CodeArtifact) (*Session, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if artifact == nil || artifact.Source == "" {
		return nil, ErrEmptySource
	}

	session := &Session{
		ID:         uuid.NewString(),
		Request:    request,
		MaxRepairs: l.maxRepairs,
		Status:     StatusRunning,
		StartedAt:  time.Now(),
	}

	state := StateDrafted
	current := artifact
	fixExplanation := ""

	var (
		deps     []Dependency
		outcomes []InstallOutcome
	)

	for !state.IsTerminal() {
		if err := ctx.Err(); err != nil {
			state = l.mustTransition(state, StateExhausted)
			l.seal(session, StatusExhausted, "cancelled: "+err.Error())
			break
		}

		switch state {
		case StateDrafted:
			deps = l.resolver.Resolve(current.Source)
			state = l.mustTransition(state, StateResolved)

		case StateResolved:
			outcomes = l.installer.Ensure(ctx, deps)
			state = l.mustTransition(state, StateInstalled)

		case StateInstalled:
			result, err := l.executor.Run(ctx, current)
			if result == nil {
				// Spawn or scratch failure: counts as a failed attempt.
				result = &ExecutionResult{
					Success: false,
					Stderr:  []byte(err.Error()),
				}
			}
			l.record(session, &Attempt{
				Artifact:        current,
				Dependencies:    deps,
				InstallOutcomes: outcomes,
				Result:          result,
				FixExplanation:  fixExplanation,
			})
			state = l.mustTransition(state, StateExecuted)

		case StateExecuted:
			result := session.FinalResult()
			switch {
			case result.Success:
				state = l.mustTransition(state, StateSucceeded)
				l.seal(session, StatusSucceeded, "")
			case len(session.Attempts) <= l.maxRepairs:
				state = l.mustTransition(state, StateNeedsRepair)
			default:
				state = l.mustTransition(state, StateExhausted)
				l.seal(session, StatusExhausted, "repair attempts exhausted")
			}

		case StateNeedsRepair:
			summary := session.FinalResult().ErrorSummary()
			l.logger.Info("Requesting repaired script",
				slog.String("session_id", session.ID),
				slog.Int("failed_version", current.Version),
			)
			code, explanation, err := l.generator.Fix(ctx, current.Source, summary)
			if err != nil {
				l.logger.Error("Generation collaborator failed",
					slog.String("session_id", session.ID),
					slog.Any("error", err),
				)
				state = l.mustTransition(state, StateExhausted)
				l.seal(session, StatusFailed, ErrGeneration.Error()+": "+err.Error())
				break
			}
			current = &CodeArtifact{Source: code, Version: current.Version + 1}
			fixExplanation = explanation
			state = l.mustTransition(state, StateDrafted)
		}
	}

	return session, nil
}

// record appends an attempt and notifies the observer.
func (l *RepairLoop) record(session *Session, attempt *Attempt) {
	session.Attempts = append(session.Attempts, attempt)
	l.logger.Info("Attempt recorded",
		slog.String("session_id", session.ID),
		slog.Int("version", attempt.Artifact.Version),
		slog.Bool("success", attempt.Result.Success),
		slog.Bool("timed_out", attempt.Result.TimedOut),
	)
	if l.onAttempt != nil {
		l.onAttempt(attempt)
	}
}

// seal marks the session terminal and emits metrics.
func (l *RepairLoop) seal(session *Session, status SessionStatus, cause string) {
	session.Status = status
	session.FailureCause = cause
	session.EndedAt = time.Now()

	sessionsTotal.WithLabelValues(string(status)).Inc()
	attemptsPerSession.Observe(float64(len(session.Attempts)))

	l.logger.Info("Session sealed",
		slog.String("session_id", session.ID),
		slog.String("status", string(status)),
		slog.Int("attempts", len(session.Attempts)),
	)
}

// mustTransition applies a transition that the loop guarantees is legal.
// An illegal edge is a programming error in the loop itself.
func (l *RepairLoop) mustTransition(from, to LoopState) LoopState {
	next, err := l.sm.Transition(from, to)
	if err != nil {
		panic(err)
	}
	return next
}
