// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/Kodiak/pkg/ux"
	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
	"github.com/AleutianAI/Kodiak/services/interpreter/service"
	"github.com/AleutianAI/Kodiak/services/interpreter/store"
	"github.com/AleutianAI/Kodiak/services/llm"
)

// newBackend creates the generation backend named by the configuration.
func newBackend() (llm.Client, error) {
	switch strings.ToLower(config.Backend) {
	case "openai":
		return llm.NewOpenAIClient()
	case "", "anthropic", "claude":
		return llm.NewAnthropicClient()
	default:
		return nil, fmt.Errorf("unknown llm_backend %q (want anthropic or openai)", config.Backend)
	}
}

// openArchive opens the session archive at the configured data directory.
func openArchive() (*store.Store, error) {
	archive, err := store.Open(store.DefaultConfig(filepath.Join(config.DataDir, "sessions")))
	if err != nil {
		return nil, fmt.Errorf("failed to open session archive: %w", err)
	}
	return archive, nil
}

// buildService assembles an interpreter service from the CLI configuration.
// repairOverride, when non-zero, replaces the configured repair budget.
// The caller owns the returned archive and must Close it.
func buildService(repairOverride int) (*service.Service, *store.Store, error) {
	backend, err := newBackend()
	if err != nil {
		return nil, nil, err
	}
	archive, err := openArchive()
	if err != nil {
		return nil, nil, err
	}

	repairs := config.MaxRepairs
	if repairOverride != 0 {
		repairs = repairOverride
	}

	svc, err := service.New(service.Config{
		Environment:    engine.NewVenvEnvironment(config.VenvPath, logger.Slog()),
		Generator:      backend,
		Archive:        archive,
		TranscriptDir:  config.TranscriptDir,
		MaxRepairs:     repairs,
		ExecTimeout:    time.Duration(config.ExecTimeoutSeconds) * time.Second,
		InstallTimeout: time.Duration(config.InstallTimeoutSeconds) * time.Second,
		Logger:         logger.Slog(),
	})
	if err != nil {
		_ = archive.Close()
		return nil, nil, err
	}
	return svc, archive, nil
}

// printSession renders a sealed session's outcome and final output.
func printSession(session *engine.Session) {
	final := session.FinalAttempt()

	switch session.Status {
	case engine.StatusSucceeded:
		if final != nil && final.Artifact.Version > 1 {
			ux.Success(fmt.Sprintf("succeeded after %d attempt(s)", len(session.Attempts)))
		} else {
			ux.Success("succeeded")
		}
	case engine.StatusExhausted:
		ux.Error("gave up: " + session.FailureCause)
	case engine.StatusFailed:
		ux.Error("failed: " + session.FailureCause)
	}

	if final == nil || final.Result == nil {
		return
	}
	if out := string(final.Result.Stdout); out != "" {
		fmt.Print(out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Println()
		}
	}
	if session.Status != engine.StatusSucceeded {
		if errOut := strings.TrimSpace(string(final.Result.Stderr)); errOut != "" {
			fmt.Println(ux.Styles.ErrorBox.Render(errOut))
		}
	}
}

// printSessionDetail renders every attempt of an archived session.
func printSessionDetail(session *engine.Session) {
	ux.Title("Session " + session.ID)
	if session.Request != "" {
		ux.Muted("Request: " + session.Request)
	}
	ux.Muted(fmt.Sprintf("Status: %s  Started: %s  Attempts: %d",
		session.Status,
		session.StartedAt.Format(time.RFC3339),
		len(session.Attempts)))
	if session.FailureCause != "" {
		ux.Warning(session.FailureCause)
	}

	for _, attempt := range session.Attempts {
		fmt.Println()
		ux.Title(fmt.Sprintf("Attempt %d", attempt.Artifact.Version))
		if attempt.FixExplanation != "" {
			ux.Muted("Fix: " + attempt.FixExplanation)
		}
		for _, outcome := range attempt.InstallOutcomes {
			if outcome.Dependency.Classification == engine.ClassStdlib {
				continue
			}
			if outcome.Installed {
				ux.Success("installed " + outcome.Dependency.PackageName)
			} else {
				ux.Warning("not installed " + outcome.Dependency.PackageName + ": " + outcome.Error)
			}
		}
		ux.Code(attempt.Artifact.Source)
		if r := attempt.Result; r != nil {
			if len(r.Stdout) > 0 {
				fmt.Print(string(r.Stdout))
			}
			if errOut := strings.TrimSpace(string(r.Stderr)); errOut != "" {
				fmt.Println(ux.Styles.ErrorBox.Render(errOut))
			}
			switch {
			case r.TimedOut:
				ux.Warning(fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond)))
			case r.ExitCode != nil:
				ux.Muted(fmt.Sprintf("exit %d in %s", *r.ExitCode, r.Duration.Round(time.Millisecond)))
			}
		}
	}
}
