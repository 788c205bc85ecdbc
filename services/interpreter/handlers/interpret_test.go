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

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
	"github.com/AleutianAI/Kodiak/services/interpreter/service"
	"github.com/AleutianAI/Kodiak/services/interpreter/store"
	"github.com/AleutianAI/Kodiak/services/llm"
)

type shellEnvironment struct{}

func (shellEnvironment) Name() string                             { return "shell-env" }
func (shellEnvironment) InterpreterPath() string                  { return "/bin/sh" }
func (shellEnvironment) IsInstalled(context.Context, string) bool { return true }
func (shellEnvironment) Install(context.Context, string, time.Duration) error {
	return nil
}

type fixedBackend struct {
	generated *llm.GeneratedCode
	err       error
}

func (b *fixedBackend) GenerateCode(context.Context, string) (*llm.GeneratedCode, error) {
	return b.generated, b.err
}

func (b *fixedBackend) FixCode(context.Context, llm.FixRequest) (*llm.GeneratedCode, error) {
	return nil, errors.New("no fixes in this test")
}

func newTestRouter(t *testing.T, backend llm.Client) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	archive, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	svc, err := service.New(service.Config{
		Environment: shellEnvironment{},
		Generator:   backend,
		Archive:     archive,
		ExecTimeout: 5 * time.Second,
		ScratchDir:  t.TempDir(),
		MaxRepairs:  -1,
	})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.POST("/v1/interpret", HandleInterpret(svc))
	router.POST("/v1/execute", HandleExecute(svc))
	router.GET("/v1/sessions", ListSessions(archive))
	router.GET("/v1/sessions/:sessionId", GetSession(archive))
	router.DELETE("/v1/sessions/:sessionId", DeleteSession(archive))
	return router, archive
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, &fixedBackend{})

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestHandleInterpret_Success(t *testing.T) {
	backend := &fixedBackend{generated: &llm.GeneratedCode{Code: "echo hi"}}
	router, _ := newTestRouter(t, backend)

	w := doJSON(router, http.MethodPost, "/v1/interpret", InterpretRequest{Request: "say hi"})
	require.Equal(t, http.StatusOK, w.Code)

	var session engine.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, engine.StatusSucceeded, session.Status)
	require.Len(t, session.Attempts, 1)
	assert.Equal(t, "hi\n", string(session.Attempts[0].Result.Stdout))
}

func TestHandleInterpret_FailedSessionStillReturns200(t *testing.T) {
	backend := &fixedBackend{generated: &llm.GeneratedCode{Code: "exit 9"}}
	router, _ := newTestRouter(t, backend)

	w := doJSON(router, http.MethodPost, "/v1/interpret", InterpretRequest{Request: "fail"})
	require.Equal(t, http.StatusOK, w.Code)

	var session engine.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, engine.StatusExhausted, session.Status)
}

func TestHandleInterpret_ValidatesBody(t *testing.T) {
	router, _ := newTestRouter(t, &fixedBackend{})

	w := doJSON(router, http.MethodPost, "/v1/interpret", map[string]string{"request": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/v1/interpret", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/v1/interpret", map[string]string{"request": "   \n\t"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleInterpret_GenerationDown(t *testing.T) {
	backend := &fixedBackend{err: errors.New("model unavailable")}
	router, _ := newTestRouter(t, backend)

	w := doJSON(router, http.MethodPost, "/v1/interpret", InterpretRequest{Request: "anything"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleExecute_Success(t *testing.T) {
	router, archive := newTestRouter(t, &fixedBackend{})

	w := doJSON(router, http.MethodPost, "/v1/execute", ExecuteRequest{Code: "echo direct"})
	require.Equal(t, http.StatusOK, w.Code)

	var session engine.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, engine.StatusSucceeded, session.Status)

	archived, err := archive.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "echo direct", archived.FinalSource())
}

func TestSessionsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &fixedBackend{})

	// Seed one session through the API.
	w := doJSON(router, http.MethodPost, "/v1/execute", ExecuteRequest{Code: "echo seeded"})
	require.Equal(t, http.StatusOK, w.Code)
	var session engine.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	// List includes it.
	w = doJSON(router, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), session.ID)

	// Get returns the full record.
	w = doJSON(router, http.MethodGet, "/v1/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "echo seeded")

	// Delete removes it.
	w = doJSON(router, http.MethodDelete, "/v1/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/v1/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, &fixedBackend{})

	w := doJSON(router, http.MethodGet, "/v1/sessions/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
