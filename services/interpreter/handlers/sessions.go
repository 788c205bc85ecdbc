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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Kodiak/services/interpreter/store"
)

func ListSessions(archive *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		slog.Info("Received request to list sessions")
		summaries, err := archive.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list archived sessions", "error", err)
			c.JSON(http.StatusInternalServerError,
				gin.H{"error": "failed to list archived sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": summaries})
	}
}

func GetSession(archive *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		session, err := archive.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("failed to load archived session", "sessionId", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func DeleteSession(archive *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		slog.Info("Received a request to delete a session", "sessionId", id)

		if err := archive.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("failed to delete archived session", "sessionId", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": id})
	}
}
