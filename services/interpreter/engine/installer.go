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
	"sync"
	"time"
)

// DefaultInstallTimeout bounds a single package install.
const DefaultInstallTimeout = 5 * time.Minute

// =============================================================================
// PACKAGE INSTALLER
// =============================================================================

// Installer ensures that a set of dependencies is present in a runtime
// environment.
//
// Installation is best-effort and independent per package: a failure
// (network error, nonexistent package, timeout) is recorded in the outcome
// list and never aborts the remaining dependencies. Dependency values are
// never mutated; Ensure returns a parallel outcome list.
//
// Create exactly one Installer per Environment. The installer's mutex is the
// environment-scoped install lock: the environment is serially reusable, and
// concurrent package-manager invocations against it can corrupt its metadata
// or deadlock on the manager's own lock file. Script execution does not take
// this lock.
//
// Thread Safety: Safe for concurrent use; concurrent Ensure calls against
// the same installer serialize.
type Installer struct {
	mu      sync.Mutex
	env     Environment
	timeout time.Duration
	logger  *slog.Logger
}

// NewInstaller creates an installer for the given environment.
//
// Inputs:
//
//	env - The runtime environment to install into
//	timeout - Per-install bound; 0 uses DefaultInstallTimeout
//	logger - Logger for structured logging (nil uses slog.Default)
func NewInstaller(env Environment, timeout time.Duration, logger *slog.Logger) *Installer {
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{env: env, timeout: timeout, logger: logger}
}

// Ensure makes the given dependencies available in the environment.
//
// Description:
//
//	Stdlib dependencies are reported installed without action. Unresolved
//	names are reported not installed without invoking the package manager.
//	Third-party dependencies already satisfied in the environment are
//	reported installed without re-invoking the package manager, making a
//	second Ensure against a populated environment idempotent. The whole
//	batch holds the environment's install lock.
//
// Inputs:
//
//	ctx - Context for cancellation; a cancelled context stops the batch and
//	      records the remaining dependencies as not installed
//	deps - Resolved dependencies (any classification)
//
// Outputs:
//
//	[]InstallOutcome - One outcome per dependency, in input order
//
// Thread Safety: Safe for concurrent use.
func (i *Installer) Ensure(ctx context.Context, deps []Dependency) []InstallOutcome {
	i.mu.Lock()
	defer i.mu.Unlock()

	outcomes := make([]InstallOutcome, 0, len(deps))
	for idx, dep := range deps {
		if err := ctx.Err(); err != nil {
			for _, rest := range deps[idx:] {
				outcomes = append(outcomes, InstallOutcome{
					Dependency: rest,
					Installed:  false,
					Error:      "cancelled: " + err.Error(),
				})
			}
			break
		}
		outcomes = append(outcomes, i.ensureOne(ctx, dep))
	}
	return outcomes
}

// ensureOne handles a single dependency.
func (i *Installer) ensureOne(ctx context.Context, dep Dependency) InstallOutcome {
	switch dep.Classification {
	case ClassStdlib:
		return InstallOutcome{Dependency: dep, Installed: true}

	case ClassUnresolved:
		return InstallOutcome{
			Dependency: dep,
			Installed:  false,
			Error:      "unresolved import name, not installable",
		}
	}

	if i.env.IsInstalled(ctx, dep.PackageName) {
		return InstallOutcome{Dependency: dep, Installed: true}
	}

	i.logger.Info("Installing package",
		slog.String("package", dep.PackageName),
		slog.String("import", dep.ImportName),
		slog.String("environment", i.env.Name()),
	)
	if err := i.env.Install(ctx, dep.PackageName, i.timeout); err != nil {
		installsTotal.WithLabelValues("failure").Inc()
		i.logger.Warn("Package install failed",
			slog.String("package", dep.PackageName),
			slog.Any("error", err),
		)
		return InstallOutcome{Dependency: dep, Installed: false, Error: err.Error()}
	}
	installsTotal.WithLabelValues("success").Inc()
	return InstallOutcome{Dependency: dep, Installed: true}
}
