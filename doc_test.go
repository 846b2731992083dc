// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spidec

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/go-lpc/spidec"
	for _, tc := range []struct {
		name string
		b    *debug.BuildInfo
		ver  string
		sum  string
	}{
		{name: "nil"},
		{
			name: "main",
			b: &debug.BuildInfo{
				Main: debug.Module{Path: root, Version: "v0.2.0", Sum: "h1:main"},
			},
			ver: "v0.2.0",
			sum: "h1:main",
		},
		{
			name: "dep",
			b: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/daq"},
				Deps: []*debug.Module{
					{Path: "example.com/other", Version: "v1.0.0"},
					{Path: root, Version: "v0.1.0", Sum: "h1:dep"},
				},
			},
			ver: "v0.1.0",
			sum: "h1:dep",
		},
		{
			name: "replace-path-version",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{Path: "example.com/fork", Version: "v0.1.1", Sum: "h1:fork"},
				}},
			},
			ver: "example.com/fork v0.1.1",
			sum: "h1:fork",
		},
		{
			name: "replace-version",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{Version: "v0.1.2", Sum: "h1:v012"},
				}},
			},
			ver: "v0.1.2",
			sum: "h1:v012",
		},
		{
			name: "replace-path",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{Path: "../spidec"},
				}},
			},
			ver: "../spidec",
		},
		{
			name: "replace-empty",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{},
				}},
			},
			ver: "v0.1.0*",
		},
		{
			name: "missing",
			b: &debug.BuildInfo{
				Deps: []*debug.Module{{Path: "example.com/other", Version: "v1.0.0"}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ver, sum := versionOf(tc.b)
			if ver != tc.ver {
				t.Fatalf("invalid version: got=%q, want=%q", ver, tc.ver)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
