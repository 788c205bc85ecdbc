// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package service coordinates the interpreter's components for one deployment:
// the generation backend, the repair loop, the session archive, and the
// on-disk transcripts. Both the CLI and the HTTP API sit on top of this
// package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
	"github.com/AleutianAI/Kodiak/services/interpreter/store"
	"github.com/AleutianAI/Kodiak/services/interpreter/transcript"
	"github.com/AleutianAI/Kodiak/services/llm"
)

// ErrBusy is returned when the concurrent-session limit is reached.
var ErrBusy = errors.New("interpreter is at its concurrent session limit")

// Config configures a Service.
type Config struct {
	// Environment is the runtime sessions execute against. Required.
	Environment engine.Environment

	// Generator is the code-generation backend. Required for Interpret and
	// for repairs; Execute with MaxRepairs < 0 works without one.
	Generator llm.Client

	// Archive persists sealed sessions. Optional; nil disables archival.
	Archive *store.Store

	// TranscriptDir is the base directory for human-readable session logs.
	// Empty disables transcripts.
	TranscriptDir string

	// MaxRepairs bounds repairs per session. 0 uses the engine default.
	MaxRepairs int

	// ExecTimeout bounds one script execution. 0 uses the engine default.
	ExecTimeout time.Duration

	// InstallTimeout bounds one package install. 0 uses the engine default.
	InstallTimeout time.Duration

	// ScratchDir overrides the parent directory for per-attempt scratch
	// directories. Empty uses the system temp directory.
	ScratchDir string

	// MaxConcurrent bounds simultaneously running sessions. Executions are
	// CPU- and install-lock-bound, so a small number is plenty.
	// 0 or negative means 4.
	MaxConcurrent int64

	Logger *slog.Logger
}

// Service runs interpreter sessions end to end.
//
// Thread Safety: Safe for concurrent use; sessions beyond the configured
// concurrency bound are rejected with ErrBusy rather than queued, so callers
// get immediate backpressure.
type Service struct {
	cfg       Config
	resolver  *engine.DependencyResolver
	installer *engine.Installer
	executor  *engine.Executor
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// New creates a Service. The installer is shared across sessions so its
// environment lock serializes pip runs service-wide.
func New(cfg Config) (*Service, error) {
	if cfg.Environment == nil {
		return nil, errors.New("environment is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	executor := engine.NewExecutor(cfg.Environment, cfg.ExecTimeout, logger)
	if cfg.ScratchDir != "" {
		executor.SetScratchDir(cfg.ScratchDir)
	}

	return &Service{
		cfg:       cfg,
		resolver:  engine.NewDependencyResolver(),
		installer: engine.NewInstaller(cfg.Environment, cfg.InstallTimeout, logger),
		executor:  executor,
		sem:       semaphore.NewWeighted(maxConcurrent),
		logger:    logger,
	}, nil
}

// Interpret turns a natural-language request into code and runs it through
// the repair loop.
//
// Outputs:
//
//	*engine.Session - The sealed session; nil only when error is non-nil
//	error - ErrBusy at the concurrency limit; generation errors when the
//	        initial draft fails; invalid-argument errors otherwise
func (s *Service) Interpret(ctx context.Context, request string) (*engine.Session, error) {
	if request == "" {
		return nil, errors.New("request must not be empty")
	}
	if s.cfg.Generator == nil {
		return nil, errors.New("no generation backend configured")
	}
	if !s.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.sem.Release(1)

	s.logger.Info("Interpreting request", slog.String("request", request))

	generated, err := s.cfg.Generator.GenerateCode(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrGeneration, err)
	}

	return s.run(ctx, request, engine.NewArtifact(generated.Code), generated.Explanation)
}

// Execute runs caller-supplied source through the repair loop directly,
// skipping generation. Repairs still consult the generation backend unless
// MaxRepairs is negative.
func (s *Service) Execute(ctx context.Context, source string) (*engine.Session, error) {
	if source == "" {
		return nil, engine.ErrEmptySource
	}
	if !s.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer s.sem.Release(1)

	return s.run(ctx, "", engine.NewArtifact(source), "")
}

func (s *Service) run(ctx context.Context, request string, artifact *engine.CodeArtifact, explanation string) (*engine.Session, error) {
	var tw *transcript.Writer
	if s.cfg.TranscriptDir != "" {
		var err error
		tw, err = transcript.New(s.cfg.TranscriptDir, request, s.logger)
		if err != nil {
			// Transcripts are a convenience; the session still runs.
			s.logger.Warn("Failed to create transcript", slog.Any("error", err))
			tw = nil
		} else if explanation != "" {
			tw.Log("INFO", "generated version 1: "+explanation)
		}
	}

	loop := engine.NewRepairLoop(engine.LoopOptions{
		Resolver:   s.resolver,
		Installer:  s.installer,
		Executor:   s.executor,
		Generator:  s.repairer(request),
		MaxRepairs: s.cfg.MaxRepairs,
		Logger:     s.logger,
		OnAttempt: func(a *engine.Attempt) {
			if tw != nil {
				tw.RecordAttempt(a)
			}
		},
	})

	session, err := loop.Run(ctx, request, artifact)
	if err != nil {
		return nil, err
	}

	if tw != nil {
		tw.Finalize(session)
	}
	if s.cfg.Archive != nil {
		// Archive with a fresh context so a cancelled session is still saved.
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.cfg.Archive.Save(saveCtx, session); err != nil {
			s.logger.Error("Failed to archive session",
				slog.String("session_id", session.ID),
				slog.Any("error", err),
			)
		}
	}

	return session, nil
}

// repairer returns the per-session repair port, or a stub when no backend is
// configured. The stub only matters when MaxRepairs is negative; otherwise
// New callers without a generator get the error from the loop's first repair
// request recorded on the session.
func (s *Service) repairer(request string) engine.Generator {
	if s.cfg.Generator == nil {
		return noRepairs{}
	}
	return llm.NewRepairer(s.cfg.Generator, request)
}

type noRepairs struct{}

func (noRepairs) Fix(context.Context, string, string) (string, string, error) {
	return "", "", errors.New("no generation backend configured")
}

// Archive exposes the session archive for read endpoints. May be nil.
func (s *Service) Archive() *store.Store {
	return s.cfg.Archive
}
