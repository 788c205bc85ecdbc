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
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultExecTimeout bounds one script execution.
const DefaultExecTimeout = 60 * time.Second

// =============================================================================
// EXECUTOR
// =============================================================================

// processKiller terminates a spawned script together with any descendant
// processes it forked. Runaway scripts may fork or exec children, so
// termination must cover the whole process tree, not the single child.
//
// Kept behind one platform-neutral interface with per-platform strategies
// (see kill_unix.go, kill_windows.go) rather than scattering GOOS
// conditionals through the Executor.
type processKiller interface {
	// Prepare configures the command before start so the tree can later be
	// terminated as a unit (e.g. placing it in its own process group).
	Prepare(cmd *exec.Cmd)

	// Kill terminates the started command's process tree.
	Kill(cmd *exec.Cmd) error
}

// Executor runs one artifact as an isolated child process of the runtime
// environment, with a wall-clock timeout.
//
// Each invocation materializes the source into a freshly named scratch
// location — never reused across attempts, to avoid stale bytecode or state —
// and removes it on every exit path: success, failure, timeout, spawn
// failure, or cancellation.
//
// Thread Safety: Safe for concurrent use. Each run owns its own scratch
// directory and child process; execution takes no environment lock.
type Executor struct {
	env        Environment
	timeout    time.Duration
	scratchDir string
	killer     processKiller
	logger     *slog.Logger
}

// NewExecutor creates an executor for the given environment.
//
// Inputs:
//
//	env - The runtime environment whose interpreter spawns the script
//	timeout - Per-run wall-clock bound; 0 uses DefaultExecTimeout
//	logger - Logger for structured logging (nil uses slog.Default)
func NewExecutor(env Environment, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		env:        env,
		timeout:    timeout,
		scratchDir: os.TempDir(),
		killer:     newProcessKiller(),
		logger:     logger,
	}
}

// SetScratchDir overrides the parent directory for per-run scratch files.
func (e *Executor) SetScratchDir(dir string) { e.scratchDir = dir }

// Run executes the artifact's source and captures the outcome.
//
// Description:
//
//	Writes the source to a scratch file, spawns it under the environment's
//	interpreter with stdout and stderr redirected into separate growable
//	buffers, and waits for exit or the timeout, whichever comes first. On
//	timeout the whole process group is terminated and the result records
//	TimedOut=true with a nil exit code. Output is recorded verbatim.
//
// Inputs:
//
//	ctx - Context for cancellation; cancellation kills the process tree
//	artifact - The artifact to execute
//
// Outputs:
//
//	*ExecutionResult - Always non-nil when error is nil; also non-nil
//	                   alongside ErrCancelled so partial output survives
//	error - Non-nil only for spawn/scratch failures and cancellation;
//	        a failing or timed-out script is a result, not an error
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Run(ctx context.Context, artifact *CodeArtifact) (*ExecutionResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if artifact == nil || artifact.Source == "" {
		return nil, ErrEmptySource
	}

	scratch, err := os.MkdirTemp(e.scratchDir, "kodiak-run-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	scriptPath := filepath.Join(scratch,
		fmt.Sprintf("script_v%d_%s.py", artifact.Version, uuid.NewString()[:8]))
	if err := os.WriteFile(scriptPath, []byte(artifact.Source), 0o600); err != nil {
		return nil, fmt.Errorf("write scratch file: %w", err)
	}

	cmd := exec.Command(e.env.InterpreterPath(), scriptPath)
	cmd.Dir = scratch
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	e.killer.Prepare(cmd)

	e.logger.Debug("Executing script",
		slog.Int("version", artifact.Version),
		slog.String("interpreter", e.env.InterpreterPath()),
		slog.Duration("timeout", e.timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn interpreter: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:

	case <-timer.C:
		timedOut = true
		if killErr := e.killer.Kill(cmd); killErr != nil {
			e.logger.Warn("Process tree kill failed", slog.Any("error", killErr))
		}
		waitErr = <-waitCh

	case <-ctx.Done():
		if killErr := e.killer.Kill(cmd); killErr != nil {
			e.logger.Warn("Process tree kill failed", slog.Any("error", killErr))
		}
		<-waitCh
		result := &ExecutionResult{
			Success:  false,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			Duration: time.Since(start),
		}
		return result, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}

	result := &ExecutionResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
		TimedOut: timedOut,
	}
	if !timedOut {
		code := exitCode(waitErr)
		result.ExitCode = &code
	}
	result.Success = !timedOut && result.ExitCode != nil && *result.ExitCode == 0

	executionDuration.Observe(result.Duration.Seconds())
	switch {
	case timedOut:
		executionsTotal.WithLabelValues("timeout").Inc()
		e.logger.Warn("Script execution timed out",
			slog.Int("version", artifact.Version),
			slog.Duration("timeout", e.timeout),
		)
	case result.Success:
		executionsTotal.WithLabelValues("success").Inc()
	default:
		executionsTotal.WithLabelValues("failure").Inc()
	}

	e.logger.Info("Script execution finished",
		slog.Int("version", artifact.Version),
		slog.Bool("success", result.Success),
		slog.Bool("timed_out", result.TimedOut),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// exitCode extracts the child's exit status from cmd.Wait's error.
func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
