// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !windows

package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
	"github.com/AleutianAI/Kodiak/services/interpreter/store"
	"github.com/AleutianAI/Kodiak/services/llm"
)

// shellEnvironment runs scripts with /bin/sh and treats every package as
// already installed, so service tests exercise real subprocesses without
// Python or pip.
type shellEnvironment struct{}

func (shellEnvironment) Name() string            { return "shell-env" }
func (shellEnvironment) InterpreterPath() string { return "/bin/sh" }
func (shellEnvironment) IsInstalled(context.Context, string) bool {
	return true
}
func (shellEnvironment) Install(context.Context, string, time.Duration) error {
	return nil
}

// scriptedBackend returns canned generation replies.
type scriptedBackend struct {
	generated   *llm.GeneratedCode
	generateErr error
	fixes       []*llm.GeneratedCode
	fixCalls    int
}

func (b *scriptedBackend) GenerateCode(context.Context, string) (*llm.GeneratedCode, error) {
	return b.generated, b.generateErr
}

func (b *scriptedBackend) FixCode(_ context.Context, _ llm.FixRequest) (*llm.GeneratedCode, error) {
	if b.fixCalls >= len(b.fixes) {
		return nil, errors.New("no more fixes scripted")
	}
	fix := b.fixes[b.fixCalls]
	b.fixCalls++
	return fix, nil
}

func newTestService(t *testing.T, backend llm.Client) (*Service, *store.Store) {
	t.Helper()
	archive, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	svc, err := New(Config{
		Environment:   shellEnvironment{},
		Generator:     backend,
		Archive:       archive,
		TranscriptDir: t.TempDir(),
		ExecTimeout:   5 * time.Second,
		ScratchDir:    t.TempDir(),
	})
	require.NoError(t, err)
	return svc, archive
}

func TestInterpret_EndToEnd(t *testing.T) {
	backend := &scriptedBackend{
		generated: &llm.GeneratedCode{Code: "echo hello", Explanation: "prints hello"},
	}
	svc, archive := newTestService(t, backend)

	session, err := svc.Interpret(context.Background(), "say hello")
	require.NoError(t, err)

	assert.Equal(t, engine.StatusSucceeded, session.Status)
	assert.Equal(t, "say hello", session.Request)
	require.Len(t, session.Attempts, 1)
	assert.Equal(t, "hello\n", string(session.Attempts[0].Result.Stdout))

	// The sealed session is archived under its ID.
	archived, err := archive.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSucceeded, archived.Status)
}

func TestInterpret_RepairPath(t *testing.T) {
	backend := &scriptedBackend{
		generated: &llm.GeneratedCode{Code: "exit 7"},
		fixes:     []*llm.GeneratedCode{{Code: "echo recovered", Explanation: "replaced the failing exit"}},
	}
	svc, _ := newTestService(t, backend)

	session, err := svc.Interpret(context.Background(), "do something")
	require.NoError(t, err)

	assert.Equal(t, engine.StatusSucceeded, session.Status)
	require.Len(t, session.Attempts, 2)
	assert.Equal(t, "replaced the failing exit", session.Attempts[1].FixExplanation)
	assert.Equal(t, 1, backend.fixCalls)
}

func TestInterpret_GenerationFailure(t *testing.T) {
	backend := &scriptedBackend{generateErr: errors.New("model unavailable")}
	svc, _ := newTestService(t, backend)

	_, err := svc.Interpret(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrGeneration)
}

func TestInterpret_EmptyRequest(t *testing.T) {
	svc, _ := newTestService(t, &scriptedBackend{})

	_, err := svc.Interpret(context.Background(), "")
	assert.Error(t, err)
}

func TestExecute_DirectSource(t *testing.T) {
	svc, archive := newTestService(t, &scriptedBackend{})

	session, err := svc.Execute(context.Background(), "echo direct")
	require.NoError(t, err)

	assert.Equal(t, engine.StatusSucceeded, session.Status)
	assert.Empty(t, session.Request)

	archived, err := archive.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "echo direct", archived.FinalSource())
}

func TestExecute_EmptySource(t *testing.T) {
	svc, _ := newTestService(t, &scriptedBackend{})

	_, err := svc.Execute(context.Background(), "")
	assert.ErrorIs(t, err, engine.ErrEmptySource)
}

func TestRun_WritesTranscript(t *testing.T) {
	transcripts := t.TempDir()
	archive, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	defer archive.Close()

	svc, err := New(Config{
		Environment:   shellEnvironment{},
		Generator:     &scriptedBackend{generated: &llm.GeneratedCode{Code: "echo hi"}},
		Archive:       archive,
		TranscriptDir: transcripts,
		ExecTimeout:   5 * time.Second,
		ScratchDir:    t.TempDir(),
	})
	require.NoError(t, err)

	_, err = svc.Interpret(context.Background(), "say hi")
	require.NoError(t, err)

	entries, err := os.ReadDir(transcripts)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	log, err := os.ReadFile(filepath.Join(transcripts, entries[0].Name(), "process_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "request: say hi")
	assert.Contains(t, string(log), "success=true")
}

func TestNew_RequiresEnvironment(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
