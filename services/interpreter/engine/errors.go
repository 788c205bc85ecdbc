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
	"errors"
	"fmt"
)

// Sentinel errors for the engine package.
var (
	// ErrNilContext indicates a nil context was passed to an operation.
	ErrNilContext = errors.New("nil context")

	// ErrEmptySource indicates an artifact with no source text.
	ErrEmptySource = errors.New("empty source")

	// ErrInvalidTransition indicates a state transition not permitted by
	// the repair loop's transition table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGeneration indicates the generation collaborator failed to
	// produce a repaired artifact. Terminal for the session.
	ErrGeneration = errors.New("code generation failed")

	// ErrSessionSealed indicates an operation on a session that already
	// reached a terminal status.
	ErrSessionSealed = errors.New("session already sealed")

	// ErrInstallTimeout indicates a single package install exceeded its
	// configured timeout.
	ErrInstallTimeout = errors.New("package install timeout")

	// ErrCancelled indicates the caller cancelled the session.
	ErrCancelled = errors.New("session cancelled")
)

// InstallError wraps a per-package installation failure with context.
//
// Thread Safety: Immutable after creation.
type InstallError struct {
	// Package is the distribution name that failed to install.
	Package string

	// Err is the underlying error.
	Err error

	// Output contains any stderr output from the package manager.
	Output string
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("install %s: %v: %s", e.Package, e.Err, e.Output)
	}
	return fmt.Sprintf("install %s: %v", e.Package, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *InstallError) Unwrap() error {
	return e.Err
}
