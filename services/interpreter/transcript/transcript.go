// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transcript writes human-readable session logs to disk.
//
// Each session gets its own directory under the base log directory:
//
//	logs/20250601_1430_scrape_the/
//	    process_log.txt        timeline of the session
//	    generated_code.py      version-1 artifact
//	    generated_code_2.py    first repair, and so on
//
// The transcript is a convenience for humans reading what happened; the
// authoritative record is the archived Session. Write failures are logged and
// otherwise ignored so transcript problems never fail a run.
package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
)

const (
	processLogName = "process_log.txt"
	slugLength     = 20
)

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Writer appends a session's progress to its transcript directory.
//
// Thread Safety: Not safe for concurrent use; a Writer belongs to one session.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// New creates the session directory and its process log.
//
// The directory name is a timestamp plus a slug of the request, so sessions
// sort chronologically in a file listing and are recognizable at a glance.
func New(baseDir, request string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	name := time.Now().Format("20060102_1504") + "_" + slug(request)
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create transcript directory %s: %w", dir, err)
	}

	w := &Writer{dir: dir, logger: logger}

	var header strings.Builder
	header.WriteString("=== Kodiak interpreter session ===\n")
	header.WriteString("time: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	if request != "" {
		header.WriteString("request: " + request + "\n")
	}
	header.WriteString("directory: " + dir + "\n")
	header.WriteString(strings.Repeat("=", 50) + "\n\n")
	if err := os.WriteFile(filepath.Join(dir, processLogName), []byte(header.String()), 0640); err != nil {
		return nil, fmt.Errorf("create process log: %w", err)
	}

	return w, nil
}

// Dir returns the session's transcript directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Log appends one timestamped line to the process log.
func (w *Writer) Log(category, message string) {
	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), category, message)
	w.append(line)
}

// SaveArtifact writes one code version to its own file. The version-1
// artifact is generated_code.py; repairs get a version suffix.
func (w *Writer) SaveArtifact(artifact *engine.CodeArtifact, explanation string) {
	if artifact == nil {
		return
	}
	name := "generated_code.py"
	if artifact.Version > 1 {
		name = fmt.Sprintf("generated_code_%d.py", artifact.Version)
	}

	var body strings.Builder
	if explanation != "" {
		body.WriteString("\"\"\"\n" + explanation + "\n\"\"\"\n\n")
	}
	body.WriteString(artifact.Source)

	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(body.String()), 0640); err != nil {
		w.logger.Warn("Failed to save artifact to transcript",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
}

// RecordAttempt logs one completed attempt: its artifact, install outcomes,
// and execution result.
func (w *Writer) RecordAttempt(attempt *engine.Attempt) {
	if attempt == nil || attempt.Result == nil {
		return
	}
	w.SaveArtifact(attempt.Artifact, attempt.FixExplanation)

	if attempt.Artifact.Version > 1 {
		w.Log("FIX", fmt.Sprintf("repair attempt produced version %d", attempt.Artifact.Version))
	}
	for _, outcome := range attempt.InstallOutcomes {
		if outcome.Dependency.Classification != engine.ClassThirdParty {
			continue
		}
		if outcome.Installed {
			w.Log("INSTALL", "installed "+outcome.Dependency.PackageName)
		} else {
			w.Log("INSTALL", "failed "+outcome.Dependency.PackageName+": "+outcome.Error)
		}
	}

	result := attempt.Result
	w.Log("RESULT", fmt.Sprintf("version %d: success=%t timed_out=%t duration=%.2fs",
		attempt.Artifact.Version, result.Success, result.TimedOut, result.Duration.Seconds()))
	if len(result.Stdout) > 0 {
		w.Log("STDOUT", strings.TrimRight(string(result.Stdout), "\n"))
	}
	if len(result.Stderr) > 0 {
		w.Log("STDERR", strings.TrimRight(string(result.Stderr), "\n"))
	}
	if result.ExitCode != nil {
		w.Log("RESULT", fmt.Sprintf("exit code: %d", *result.ExitCode))
	}
}

// Finalize appends the closing summary for a sealed session.
func (w *Writer) Finalize(session *engine.Session) {
	var footer strings.Builder
	footer.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	footer.WriteString("session ended: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	if session != nil {
		footer.WriteString(fmt.Sprintf("status: %s, attempts: %d\n", session.Status, len(session.Attempts)))
		if session.FailureCause != "" {
			footer.WriteString("cause: " + session.FailureCause + "\n")
		}
	}
	w.append(footer.String())
}

func (w *Writer) append(text string) {
	path := filepath.Join(w.dir, processLogName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		w.logger.Warn("Failed to append to process log", slog.Any("error", err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		w.logger.Warn("Failed to append to process log", slog.Any("error", err))
	}
}

// slug reduces a request to a short, filesystem-safe directory suffix.
func slug(request string) string {
	runes := []rune(request)
	if len(runes) > slugLength {
		runes = runes[:slugLength]
	}
	s := string(runes)
	s = illegalChars.ReplaceAllString(s, "_")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		s = "request"
	}
	return s
}
