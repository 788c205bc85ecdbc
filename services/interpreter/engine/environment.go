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
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/AleutianAI/Kodiak/pkg/validation"
)

// =============================================================================
// RUNTIME ENVIRONMENT
// =============================================================================

// Environment is the designated runtime a session executes against: an
// interpreter plus its installed packages, identified by a path or handle.
//
// The engine relies on exactly three primitive operations; everything else
// (scratch files, process groups, timeouts) is the engine's own business.
// Modeling the environment as an explicit handle passed to every component —
// rather than implicit global state — keeps sessions independently testable
// with a fake implementation.
type Environment interface {
	// Name identifies the environment in logs and reports.
	Name() string

	// InterpreterPath returns the path of the Python interpreter used to
	// spawn scripts.
	InterpreterPath() string

	// IsInstalled reports whether a distribution is already present.
	IsInstalled(ctx context.Context, pkg string) bool

	// Install installs one distribution, bounded by timeout.
	Install(ctx context.Context, pkg string, timeout time.Duration) error
}

// VenvEnvironment is an Environment backed by a Python virtualenv on disk.
//
// Thread Safety: IsInstalled and Install shell out to pip; callers must
// serialize Install invocations against the same venv (see Installer), since
// concurrent pip runs can corrupt the environment's metadata or deadlock on
// pip's own lock file.
type VenvEnvironment struct {
	root   string
	logger *slog.Logger
}

// NewVenvEnvironment creates a handle for the virtualenv rooted at path.
//
// The venv is not created or validated here; a missing interpreter surfaces
// as a spawn failure on first use.
func NewVenvEnvironment(path string, logger *slog.Logger) *VenvEnvironment {
	if logger == nil {
		logger = slog.Default()
	}
	return &VenvEnvironment{root: path, logger: logger}
}

// Name returns the venv root path.
func (e *VenvEnvironment) Name() string { return e.root }

// InterpreterPath returns the venv's python binary.
func (e *VenvEnvironment) InterpreterPath() string {
	return filepath.Join(e.root, binDir(), "python")
}

// pipPath returns the venv's pip binary.
func (e *VenvEnvironment) pipPath() string {
	return filepath.Join(e.root, binDir(), "pip")
}

// IsInstalled checks presence via `pip show`.
//
// A pip failure (missing binary, corrupt venv) reports false: the installer
// will then attempt an install and record the real error there.
func (e *VenvEnvironment) IsInstalled(ctx context.Context, pkg string) bool {
	cmd := exec.CommandContext(ctx, e.pipPath(), "show", "--quiet", pkg)
	err := cmd.Run()
	return err == nil
}

// Install runs `pip install <pkg>` bounded by timeout.
//
// The package name is validated first so a hostile name derived from
// generated source can never smuggle a pip option or shell metacharacters.
//
// Outputs:
//
//	error - nil on success; *InstallError with pip's stderr on failure;
//	        wraps ErrInstallTimeout when the deadline fired.
func (e *VenvEnvironment) Install(ctx context.Context, pkg string, timeout time.Duration) error {
	if err := validation.ValidatePackageName(pkg); err != nil {
		return &InstallError{Package: pkg, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.pipPath(), "install", pkg)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		e.logger.Warn("Package install timed out",
			slog.String("package", pkg),
			slog.Duration("timeout", timeout),
		)
		return &InstallError{Package: pkg, Err: ErrInstallTimeout}
	}
	if err != nil {
		return &InstallError{Package: pkg, Err: err, Output: stderr.String()}
	}

	e.logger.Info("Package installed",
		slog.String("package", pkg),
		slog.String("venv", e.root),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// binDir returns the venv's executable directory name for this platform.
func binDir() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}
