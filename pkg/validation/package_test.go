// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "requests", false},
		{"hyphenated", "opencv-python", false},
		{"dotted", "ruamel.yaml", false},
		{"underscored", "typing_extensions", false},
		{"mixed case", "PyYAML", false},
		{"single char", "q", false},
		{"digits", "i18n2", false},
		{"empty", "", true},
		{"leading hyphen", "-requests", true},
		{"option smuggling", "--index-url=https://evil.example", true},
		{"trailing hyphen", "requests-", true},
		{"shell metachars", "requests; rm -rf /", true},
		{"spaces", "two words", true},
		{"path traversal", "../../etc/passwd", true},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePackageNames(t *testing.T) {
	if err := ValidatePackageNames([]string{"requests", "numpy"}); err != nil {
		t.Errorf("unexpected error for valid names: %v", err)
	}

	err := ValidatePackageNames([]string{"requests", "--evil", "numpy", "also bad"})
	if err == nil {
		t.Fatal("expected error for invalid names")
	}
	if !strings.Contains(err.Error(), "--evil") || !strings.Contains(err.Error(), "also bad") {
		t.Errorf("error should list all invalid names, got: %v", err)
	}
}

func TestSanitizePackageName(t *testing.T) {
	got, err := SanitizePackageName("  requests \n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "requests" {
		t.Errorf("SanitizePackageName() = %q, want %q", got, "requests")
	}

	if _, err := SanitizePackageName(" --upgrade "); err == nil {
		t.Error("expected error for option-like name")
	}
}
