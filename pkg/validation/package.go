// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// subprocess calls. Package names end up as arguments to the package manager,
// so validating them prevents option smuggling (e.g. "--index-url=...") and
// command injection.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// packagePattern matches valid PyPI distribution names per PEP 508:
// letters, digits, and interior runs of ".", "-", "_". Must start and end
// alphanumeric.
var packagePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

const maxPackageNameLength = 100

// ValidatePackageName validates a pip distribution name before it is passed
// to the package manager.
//
// Valid names:
//   - 1-100 characters
//   - Letters, digits, dots, hyphens, underscores
//   - First and last character alphanumeric
//
// In particular a leading "-" is rejected, so a hostile name can never be
// interpreted as a pip option.
//
// Example:
//
//	if err := validation.ValidatePackageName(pkg); err != nil {
//	    return fmt.Errorf("refusing to install: %w", err)
//	}
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if len(name) > maxPackageNameLength {
		return fmt.Errorf("package name too long: %d characters (max %d)", len(name), maxPackageNameLength)
	}
	if !packagePattern.MatchString(name) {
		return fmt.Errorf("invalid package name: %q (must be alphanumeric with interior dots, hyphens, or underscores)", name)
	}
	return nil
}

// ValidatePackageNames validates multiple distribution names.
// Returns an error listing all invalid names if any fail validation.
func ValidatePackageNames(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidatePackageName(n); err != nil {
			invalid = append(invalid, n)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid package names: %v", invalid)
	}
	return nil
}

// SanitizePackageName trims whitespace and validates a distribution name.
// Returns the trimmed name if valid.
func SanitizePackageName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := ValidatePackageName(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
