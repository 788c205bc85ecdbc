// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Kodiak/services/interpreter/engine"
)

func readProcessLog(t *testing.T, w *Writer) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(w.Dir(), processLogName))
	require.NoError(t, err)
	return string(data)
}

func TestNew_CreatesSessionDirectory(t *testing.T) {
	base := t.TempDir()

	w, err := New(base, "scrape the front page of example.com", nil)
	require.NoError(t, err)

	info, err := os.Stat(w.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Contains(t, filepath.Base(w.Dir()), "scrape_the")

	log := readProcessLog(t, w)
	assert.Contains(t, log, "Kodiak interpreter session")
	assert.Contains(t, log, "request: scrape the front page of example.com")
}

func TestSlug_Sanitizes(t *testing.T) {
	tests := []struct {
		name    string
		request string
		want    string
	}{
		{name: "spaces become underscores", request: "hello world", want: "hello_world"},
		{name: "illegal chars stripped", request: `read C:\temp?`, want: "read_C__temp_"},
		{name: "empty request", request: "", want: "request"},
		{name: "truncated to slug length", request: strings.Repeat("a", 100), want: strings.Repeat("a", slugLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slug(tt.request))
		})
	}
}

func TestSaveArtifact_VersionedFilenames(t *testing.T) {
	w, err := New(t.TempDir(), "req", nil)
	require.NoError(t, err)

	w.SaveArtifact(&engine.CodeArtifact{Source: "print(1)", Version: 1}, "")
	w.SaveArtifact(&engine.CodeArtifact{Source: "print(2)", Version: 2}, "Fixed the off-by-one.")

	v1, err := os.ReadFile(filepath.Join(w.Dir(), "generated_code.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(v1))

	v2, err := os.ReadFile(filepath.Join(w.Dir(), "generated_code_2.py"))
	require.NoError(t, err)
	assert.Contains(t, string(v2), "Fixed the off-by-one.")
	assert.Contains(t, string(v2), "print(2)")
}

func TestRecordAttempt_WritesTimeline(t *testing.T) {
	w, err := New(t.TempDir(), "req", nil)
	require.NoError(t, err)

	three := 3
	w.RecordAttempt(&engine.Attempt{
		Artifact: &engine.CodeArtifact{Source: "import requests", Version: 1},
		InstallOutcomes: []engine.InstallOutcome{
			{
				Dependency: engine.Dependency{ImportName: "requests", PackageName: "requests", Classification: engine.ClassThirdParty},
				Installed:  true,
			},
		},
		Result: &engine.ExecutionResult{
			Success:  false,
			Stderr:   []byte("ConnectionError: refused\n"),
			ExitCode: &three,
		},
	})

	log := readProcessLog(t, w)
	assert.Contains(t, log, "installed requests")
	assert.Contains(t, log, "success=false")
	assert.Contains(t, log, "ConnectionError: refused")
	assert.Contains(t, log, "exit code: 3")
}

func TestFinalize_AppendsSummary(t *testing.T) {
	w, err := New(t.TempDir(), "req", nil)
	require.NoError(t, err)

	w.Finalize(&engine.Session{
		Status:       engine.StatusExhausted,
		FailureCause: "repair attempts exhausted",
		Attempts:     []*engine.Attempt{{}, {}, {}},
	})

	log := readProcessLog(t, w)
	assert.Contains(t, log, "status: exhausted, attempts: 3")
	assert.Contains(t, log, "cause: repair attempts exhausted")
}
