// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
	"github.com/AleutianAI/Kodiak/services/interpreter/service"
)

// InterpretRequest is the body of POST /v1/interpret.
type InterpretRequest struct {
	// Request is the natural-language task description.
	Request string `json:"request" binding:"required,notblank,max=10000"`
}

// ExecuteRequest is the body of POST /v1/execute.
type ExecuteRequest struct {
	// Code is the Python source to run directly, skipping generation.
	Code string `json:"code" binding:"required,notblank,max=200000"`
}

// notBlank rejects whitespace-only strings, which "required" accepts.
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", notBlank)
	}
}

// HandleInterpret generates code for a request and runs it through the
// repair loop, returning the sealed session.
func HandleInterpret(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InterpretRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Received interpret request", "length", len(req.Request))

		session, err := svc.Interpret(c.Request.Context(), req.Request)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// HandleExecute runs caller-supplied source through the repair loop.
func HandleExecute(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Received execute request", "source_bytes", len(req.Code))

		session, err := svc.Execute(c.Request.Context(), req.Code)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// writeServiceError maps service failures onto HTTP statuses.
//
// A session that ran and failed is NOT an error here: it arrives as a sealed
// session with a terminal status and returns 200. Only pre-session failures
// (busy, generation down, bad input) reach this path.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrGeneration):
		slog.Error("Generation backend failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
