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
	"reflect"
	"testing"
)

// =============================================================================
// RESOLVER TESTS
// =============================================================================

func TestResolve_Classification(t *testing.T) {
	r := NewDependencyResolver()

	tests := []struct {
		name   string
		source string
		want   []Dependency
	}{
		{
			name:   "stdlib only",
			source: "import os\nimport sys\nimport json",
			want: []Dependency{
				{ImportName: "os", PackageName: "os", Classification: ClassStdlib},
				{ImportName: "sys", PackageName: "sys", Classification: ClassStdlib},
				{ImportName: "json", PackageName: "json", Classification: ClassStdlib},
			},
		},
		{
			name:   "mapped third party",
			source: "import cv2\nfrom PIL import Image",
			want: []Dependency{
				{ImportName: "cv2", PackageName: "opencv-python", Classification: ClassThirdParty},
				{ImportName: "PIL", PackageName: "Pillow", Classification: ClassThirdParty},
			},
		},
		{
			name:   "unknown name defaults to third party best guess",
			source: "import somethingobscure",
			want: []Dependency{
				{ImportName: "somethingobscure", PackageName: "somethingobscure", Classification: ClassThirdParty},
			},
		},
		{
			name:   "from import uses top-level module",
			source: "from sklearn.linear_model import LinearRegression",
			want: []Dependency{
				{ImportName: "sklearn", PackageName: "scikit-learn", Classification: ClassThirdParty},
			},
		},
		{
			name:   "aliases and multi-import",
			source: "import numpy as np, pandas as pd",
			want: []Dependency{
				{ImportName: "numpy", PackageName: "numpy", Classification: ClassThirdParty},
				{ImportName: "pandas", PackageName: "pandas", Classification: ClassThirdParty},
			},
		},
		{
			name:   "relative imports excluded",
			source: "from . import helpers\nfrom .models import User\nimport requests",
			want: []Dependency{
				{ImportName: "requests", PackageName: "requests", Classification: ClassThirdParty},
			},
		},
		{
			name:   "nested and conditional imports still detected",
			source: "def f():\n    import requests\nif True:\n        import yaml",
			want: []Dependency{
				{ImportName: "requests", PackageName: "requests", Classification: ClassThirdParty},
				{ImportName: "yaml", PackageName: "PyYAML", Classification: ClassThirdParty},
			},
		},
		{
			name:   "dunder module is unresolved",
			source: "import __main__",
			want: []Dependency{
				{ImportName: "__main__", PackageName: "__main__", Classification: ClassUnresolved},
			},
		},
		{
			name:   "future import is stdlib",
			source: "from __future__ import annotations",
			want: []Dependency{
				{ImportName: "__future__", PackageName: "__future__", Classification: ClassStdlib},
			},
		},
		{
			name:   "malformed source yields partial list",
			source: "import requests\ndef broken(:\nimport yaml",
			want: []Dependency{
				{ImportName: "requests", PackageName: "requests", Classification: ClassThirdParty},
				{ImportName: "yaml", PackageName: "PyYAML", Classification: ClassThirdParty},
			},
		},
		{
			name:   "no imports",
			source: "print(1+1)",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.source)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve_DedupByPackageName(t *testing.T) {
	r := NewDependencyResolver()

	// Two distinct spellings of the same distribution collapse to one
	// Dependency, keeping first-seen order.
	source := "import PIL\nfrom PIL import Image\nimport numpy\nimport numpy as np"
	got := r.Resolve(source)

	want := []Dependency{
		{ImportName: "PIL", PackageName: "Pillow", Classification: ClassThirdParty},
		{ImportName: "numpy", PackageName: "numpy", Classification: ClassThirdParty},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := NewDependencyResolver()
	source := "import requests\nimport os\nfrom bs4 import BeautifulSoup\nimport cv2"

	first := r.Resolve(source)
	for i := 0; i < 50; i++ {
		if got := r.Resolve(source); !reflect.DeepEqual(got, first) {
			t.Fatalf("Resolve() not deterministic: run %d = %+v, first = %+v", i, got, first)
		}
	}
}

func TestThirdParty_Filter(t *testing.T) {
	r := NewDependencyResolver()
	deps := r.Resolve("import os\nimport requests\nimport __main__")

	got := ThirdParty(deps)
	if len(got) != 1 || got[0].PackageName != "requests" {
		t.Errorf("ThirdParty() = %+v, want only requests", got)
	}
}
