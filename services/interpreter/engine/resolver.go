// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"regexp"
	"strings"
)

// =============================================================================
// DEPENDENCY RESOLVER
// =============================================================================

// DependencyResolver extracts and classifies the imports of a Python script.
//
// Resolution is purely lexical: conditional and nested imports (inside
// branches or function bodies) are detected, since no execution trace is
// involved. Malformed source yields an empty or partial list rather than an
// error — static analysis here is best-effort by contract.
//
// Thread Safety: Safe for concurrent use. The resolver holds no mutable state.
type DependencyResolver struct {
	stdlib  map[string]bool
	mapping map[string]string
}

// NewDependencyResolver creates a resolver with the built-in standard-library
// set and import-to-distribution mapping table.
func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{
		stdlib:  stdlibModules,
		mapping: importToPackage,
	}
}

var (
	// importLineRe matches direct imports, including indented ones:
	//   import os
	//   import numpy as np, pandas
	importLineRe = regexp.MustCompile(`^\s*import\s+(.+)$`)

	// fromLineRe matches from-style imports:
	//   from collections import OrderedDict
	//   from sklearn.linear_model import LinearRegression
	// Relative imports (from . import x) deliberately do not match.
	fromLineRe = regexp.MustCompile(`^\s*from\s+([A-Za-z_][A-Za-z0-9_.]*)\s+import\b`)

	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Resolve scans source text for import statements and returns the resolved
// dependency list.
//
// Description:
//
//	Each imported top-level module name is looked up in the mapping table
//	(for cases like "cv2" -> "opencv-python"), then classified against the
//	standard-library set. Unmatched names default to third_party with
//	PackageName equal to the import name. Two import names mapping to the
//	same distribution collapse into one Dependency. Output preserves
//	first-seen order; order matters only for human-readable reporting.
//
// Inputs:
//
//	source - Python source text (may be malformed)
//
// Outputs:
//
//	[]Dependency - Deduplicated dependencies in first-seen order
//
// Thread Safety: Safe for concurrent use.
func (r *DependencyResolver) Resolve(source string) []Dependency {
	var deps []Dependency
	seen := make(map[string]bool)

	for _, line := range strings.Split(source, "\n") {
		for _, name := range importedModules(line) {
			dep := r.classify(name)
			if seen[dep.PackageName] {
				continue
			}
			seen[dep.PackageName] = true
			deps = append(deps, dep)
		}
	}
	return deps
}

// ThirdParty filters a resolved list down to the installable dependencies.
func ThirdParty(deps []Dependency) []Dependency {
	var out []Dependency
	for _, d := range deps {
		if d.Classification == ClassThirdParty {
			out = append(out, d)
		}
	}
	return out
}

// classify maps one top-level import name to a Dependency.
func (r *DependencyResolver) classify(name string) Dependency {
	if r.stdlib[name] {
		return Dependency{ImportName: name, PackageName: name, Classification: ClassStdlib}
	}
	if pkg, ok := r.mapping[name]; ok {
		return Dependency{ImportName: name, PackageName: pkg, Classification: ClassThirdParty}
	}
	// Dunder modules (__main__, vendored __init__ tricks) are not
	// installable distributions.
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return Dependency{ImportName: name, PackageName: name, Classification: ClassUnresolved}
	}
	// Best guess: the distribution shares the import name.
	return Dependency{ImportName: name, PackageName: name, Classification: ClassThirdParty}
}

// importedModules extracts the top-level module names imported by one line.
//
// Returns nil for lines that are not import statements, including relative
// imports (package-internal, never installable).
func importedModules(line string) []string {
	if m := fromLineRe.FindStringSubmatch(line); m != nil {
		top := strings.SplitN(m[1], ".", 2)[0]
		if identifierRe.MatchString(top) {
			return []string{top}
		}
		return nil
	}

	m := importLineRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	var names []string
	for _, part := range strings.Split(m[1], ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		// "numpy as np" -> "numpy"; trailing comments drop out with Fields.
		top := strings.SplitN(fields[0], ".", 2)[0]
		if identifierRe.MatchString(top) {
			names = append(names, top)
		}
	}
	return names
}

// importToPackage maps import names to their pip distribution names for the
// common cases where the two differ.
var importToPackage = map[string]string{
	"cv2":      "opencv-python",
	"PIL":      "Pillow",
	"sklearn":  "scikit-learn",
	"skimage":  "scikit-image",
	"yaml":     "PyYAML",
	"bs4":      "beautifulsoup4",
	"dateutil": "python-dateutil",
	"dotenv":   "python-dotenv",
	"Crypto":   "pycryptodome",
	"fitz":     "PyMuPDF",
	"docx":     "python-docx",
	"pptx":     "python-pptx",
	"serial":   "pyserial",
	"magic":    "python-magic",
	"git":      "GitPython",
	"kafka":    "kafka-python",
	"redis":    "redis",
	"psycopg2": "psycopg2-binary",
	"wx":       "wxPython",
	"OpenGL":   "PyOpenGL",
}

// stdlibModules is the set of module names shipped with the CPython runtime.
// Kept as a flat set rather than queried from the interpreter so resolution
// stays a pure function of the source text.
var stdlibModules = toSet([]string{
	"abc", "argparse", "array", "asyncio", "base64", "bisect", "builtins",
	"calendar", "cmath", "codecs", "collections", "concurrent",
	"configparser", "contextlib", "copy", "csv", "ctypes", "dataclasses",
	"datetime", "decimal", "difflib", "dis", "email", "enum", "errno",
	"fnmatch", "fractions", "ftplib", "functools", "gc", "getpass", "gettext",
	"glob", "graphlib", "gzip", "hashlib", "heapq", "hmac", "html", "http",
	"imaplib", "importlib", "inspect", "io", "ipaddress", "itertools", "json",
	"keyword", "locale", "logging", "lzma", "mailbox", "math", "mimetypes",
	"multiprocessing", "numbers", "operator", "os", "pathlib", "pickle",
	"platform", "plistlib", "pprint", "pstats", "pty", "queue", "random",
	"re", "readline", "reprlib", "sched", "secrets", "select", "selectors",
	"shelve", "shlex", "shutil", "signal", "site", "smtplib", "socket",
	"socketserver", "sqlite3", "ssl", "stat", "statistics", "string",
	"stringprep", "struct", "subprocess", "sys", "sysconfig", "tarfile",
	"tempfile", "textwrap", "threading", "time", "timeit", "token",
	"tokenize", "tomllib", "traceback", "tracemalloc", "types", "typing",
	"unicodedata", "unittest", "urllib", "uuid", "venv", "warnings", "wave",
	"weakref", "webbrowser", "xml", "xmlrpc", "zipfile", "zlib", "zoneinfo",
	"__future__",
})

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
