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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnvironment is an in-memory Environment for installer and loop tests.
type fakeEnvironment struct {
	mu           sync.Mutex
	installed    map[string]bool
	failWith     map[string]error
	installCalls []string
	interpreter  string
}

func newFakeEnvironment() *fakeEnvironment {
	return &fakeEnvironment{
		installed:   make(map[string]bool),
		failWith:    make(map[string]error),
		interpreter: "/bin/sh",
	}
}

func (f *fakeEnvironment) Name() string            { return "fake-env" }
func (f *fakeEnvironment) InterpreterPath() string { return f.interpreter }

func (f *fakeEnvironment) IsInstalled(_ context.Context, pkg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[pkg]
}

func (f *fakeEnvironment) Install(_ context.Context, pkg string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installCalls = append(f.installCalls, pkg)
	if err, ok := f.failWith[pkg]; ok {
		return err
	}
	f.installed[pkg] = true
	return nil
}

func thirdPartyDep(name string) Dependency {
	return Dependency{ImportName: name, PackageName: name, Classification: ClassThirdParty}
}

// =============================================================================
// INSTALLER TESTS
// =============================================================================

func TestEnsure_StdlibReportedWithoutAction(t *testing.T) {
	env := newFakeEnvironment()
	inst := NewInstaller(env, 0, nil)

	deps := []Dependency{
		{ImportName: "os", PackageName: "os", Classification: ClassStdlib},
		{ImportName: "json", PackageName: "json", Classification: ClassStdlib},
	}
	outcomes := inst.Ensure(context.Background(), deps)

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Installed)
		assert.Empty(t, o.Error)
	}
	assert.Empty(t, env.installCalls, "stdlib must not invoke the package manager")
}

func TestEnsure_InstallsMissingThirdParty(t *testing.T) {
	env := newFakeEnvironment()
	inst := NewInstaller(env, 0, nil)

	outcomes := inst.Ensure(context.Background(), []Dependency{thirdPartyDep("requests")})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Installed)
	assert.Equal(t, []string{"requests"}, env.installCalls)
}

func TestEnsure_Idempotent(t *testing.T) {
	env := newFakeEnvironment()
	inst := NewInstaller(env, 0, nil)
	deps := []Dependency{thirdPartyDep("requests"), thirdPartyDep("numpy")}

	first := inst.Ensure(context.Background(), deps)
	require.Len(t, first, 2)
	require.Len(t, env.installCalls, 2)

	// Second pass against the now-populated environment reports everything
	// installed without re-invoking the package manager.
	second := inst.Ensure(context.Background(), deps)
	require.Len(t, second, 2)
	for _, o := range second {
		assert.True(t, o.Installed)
	}
	assert.Len(t, env.installCalls, 2, "second Ensure must not reinstall")
}

func TestEnsure_FailureDoesNotAbortBatch(t *testing.T) {
	env := newFakeEnvironment()
	env.failWith["nonexistent-pkg"] = errors.New("no matching distribution found")
	inst := NewInstaller(env, 0, nil)

	deps := []Dependency{
		thirdPartyDep("nonexistent-pkg"),
		thirdPartyDep("requests"),
	}
	outcomes := inst.Ensure(context.Background(), deps)

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Installed)
	assert.Contains(t, outcomes[0].Error, "no matching distribution")
	assert.True(t, outcomes[1].Installed, "later packages still processed")
}

func TestEnsure_UnresolvedSkipsPackageManager(t *testing.T) {
	env := newFakeEnvironment()
	inst := NewInstaller(env, 0, nil)

	dep := Dependency{ImportName: "__main__", PackageName: "__main__", Classification: ClassUnresolved}
	outcomes := inst.Ensure(context.Background(), []Dependency{dep})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Installed)
	assert.Contains(t, outcomes[0].Error, "unresolved")
	assert.Empty(t, env.installCalls)
}

func TestEnsure_CancelledContextRecordsRemaining(t *testing.T) {
	env := newFakeEnvironment()
	inst := NewInstaller(env, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deps := []Dependency{thirdPartyDep("requests"), thirdPartyDep("numpy")}
	outcomes := inst.Ensure(ctx, deps)

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.False(t, o.Installed)
		assert.Contains(t, o.Error, "cancelled")
	}
	assert.Empty(t, env.installCalls)
}

func TestEnsure_DependenciesNotMutated(t *testing.T) {
	env := newFakeEnvironment()
	inst := NewInstaller(env, 0, nil)

	deps := []Dependency{thirdPartyDep("requests")}
	snapshot := deps[0]
	_ = inst.Ensure(context.Background(), deps)

	assert.Equal(t, snapshot, deps[0])
}
