// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the execute-resolve-install-repair core of the
// Kodiak interpreter.
//
// A generated script enters the repair loop as a CodeArtifact. The loop
// resolves its imports (DependencyResolver), ensures the third-party ones are
// present in the runtime environment (PackageInstaller), runs the script as an
// isolated child process (Executor), and — when the run fails — asks the
// generation collaborator for a corrected artifact and retries, up to a
// bounded number of repairs. The Session record is the sole externally
// visible artifact of a run.
package engine

import (
	"strconv"
	"time"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Classification describes how an imported module name was categorized.
type Classification string

const (
	// ClassStdlib marks modules shipped with the Python runtime.
	// They never require installation.
	ClassStdlib Classification = "stdlib"

	// ClassThirdParty marks modules that must be installed from PyPI.
	ClassThirdParty Classification = "third_party"

	// ClassUnresolved marks import names the resolver could not map to a
	// plausible installable distribution. The installer records these as
	// not installed without invoking the package manager.
	ClassUnresolved Classification = "unresolved"
)

// Dependency is one imported module resolved to an installable package.
//
// Derived purely from source text. Deduplicated by PackageName, ordered by
// first appearance in the source.
//
// Thread Safety: Immutable after creation.
type Dependency struct {
	// ImportName is the top-level module name as written in the source
	// (e.g. "cv2").
	ImportName string `json:"import_name"`

	// PackageName is the pip-installable distribution name
	// (e.g. "opencv-python"). Equals ImportName when no mapping applies.
	PackageName string `json:"package_name"`

	// Classification is stdlib, third_party, or unresolved.
	Classification Classification `json:"classification"`
}

// InstallOutcome records the result of ensuring one dependency.
//
// Thread Safety: Immutable after creation.
type InstallOutcome struct {
	Dependency Dependency `json:"dependency"`

	// Installed reports whether the dependency is available in the
	// environment after the ensure pass. Stdlib dependencies are always
	// reported installed without action.
	Installed bool `json:"installed"`

	// Error holds the failure detail when Installed is false.
	Error string `json:"error,omitempty"`
}

// =============================================================================
// ARTIFACTS AND EXECUTION
// =============================================================================

// CodeArtifact is one immutable, versioned snapshot of generated source text.
//
// A repaired script is a new artifact with the next version number, never a
// mutation of the previous one. Versions within a session are strictly
// increasing integers starting at 1.
type CodeArtifact struct {
	// Source is the full Python source text.
	Source string `json:"source"`

	// Version starts at 1 for the original artifact and increments by one
	// per repair.
	Version int `json:"version"`
}

// NewArtifact creates the version-1 artifact for a session.
func NewArtifact(source string) *CodeArtifact {
	return &CodeArtifact{Source: source, Version: 1}
}

// ExecutionResult captures one Executor invocation verbatim.
//
// Success is true iff the process exited zero and did not time out.
//
// Thread Safety: Immutable after creation.
type ExecutionResult struct {
	Success bool `json:"success"`

	// Stdout and Stderr hold the captured output exactly as written by the
	// child process. No line-ending or encoding normalization is applied.
	Stdout []byte `json:"stdout"`
	Stderr []byte `json:"stderr"`

	// ExitCode is nil when the process was terminated by timeout or never
	// reached a normal exit.
	ExitCode *int `json:"exit_code"`

	// Duration is the wall-clock time from spawn to exit or termination.
	Duration time.Duration `json:"duration"`

	// TimedOut is true when the process-group was forcibly terminated at
	// the configured deadline.
	TimedOut bool `json:"timed_out"`
}

// ErrorSummary renders the failure detail handed to the repair collaborator:
// captured stderr plus an exit summary line.
func (r *ExecutionResult) ErrorSummary() string {
	if r == nil {
		return ""
	}
	summary := string(r.Stderr)
	switch {
	case r.TimedOut:
		summary += "\n[process killed: execution exceeded the time limit]"
	case r.ExitCode != nil && *r.ExitCode != 0:
		summary += "\n[process exited with code " + strconv.Itoa(*r.ExitCode) + "]"
	}
	return summary
}

// =============================================================================
// ATTEMPTS AND SESSIONS
// =============================================================================

// Attempt is one full resolve-install-execute cycle for a single artifact
// version within a session.
//
// Thread Safety: Immutable once recorded on the session.
type Attempt struct {
	Artifact        *CodeArtifact    `json:"artifact"`
	Dependencies    []Dependency     `json:"dependencies"`
	InstallOutcomes []InstallOutcome `json:"install_outcomes"`
	Result          *ExecutionResult `json:"result"`

	// FixExplanation is the collaborator's human-readable description of
	// the repair that produced this attempt's artifact. Empty for the
	// original (version 1) attempt.
	FixExplanation string `json:"fix_explanation,omitempty"`
}

// SessionStatus is the terminal status of a session.
type SessionStatus string

const (
	// StatusRunning is the pre-terminal status while attempts are ongoing.
	StatusRunning SessionStatus = "running"

	// StatusSucceeded means an attempt's execution succeeded.
	StatusSucceeded SessionStatus = "succeeded"

	// StatusExhausted means the repair budget was spent without a
	// successful execution, or the caller cancelled the session.
	// FailureCause carries the detail.
	StatusExhausted SessionStatus = "exhausted"

	// StatusFailed means the generation collaborator failed, so the loop
	// could not continue. FailureCause carries the detail.
	StatusFailed SessionStatus = "failed"
)

// IsTerminal reports whether the status seals the session.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusExhausted || s == StatusFailed
}

// Session is the ordered history of attempts for one user request, sealed at
// a terminal status. It is the only artifact the core hands to its callers.
//
// Invariants:
//   - len(Attempts) <= MaxRepairs + 1
//   - Attempts[i].Artifact.Version == i+1
//
// Thread Safety: Owned by a single RepairLoop run until sealed; safe to read
// from any goroutine afterwards.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// Request is the natural-language request that produced the original
	// artifact, kept for repair prompts and archival.
	Request string `json:"request,omitempty"`

	Attempts []*Attempt `json:"attempts"`

	// MaxRepairs bounds the number of repair attempts after the original
	// run (default 2, giving at most 3 total attempts).
	MaxRepairs int `json:"max_repairs"`

	Status SessionStatus `json:"status"`

	// FailureCause explains why a session ended without success
	// (generation failure, cancellation, spent repair budget).
	FailureCause string `json:"failure_cause,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// FinalAttempt returns the last recorded attempt, or nil before the first
// execution completes.
func (s *Session) FinalAttempt() *Attempt {
	if len(s.Attempts) == 0 {
		return nil
	}
	return s.Attempts[len(s.Attempts)-1]
}

// FinalResult returns the last attempt's execution result, or nil.
func (s *Session) FinalResult() *ExecutionResult {
	if a := s.FinalAttempt(); a != nil {
		return a.Result
	}
	return nil
}

// FinalSource returns the source text of the last attempted artifact.
func (s *Session) FinalSource() string {
	if a := s.FinalAttempt(); a != nil && a.Artifact != nil {
		return a.Artifact.Source
	}
	return ""
}
