// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build windows

package engine

import (
	"os/exec"
	"strconv"
)

// taskkillKiller terminates a script and its descendants via taskkill /T,
// which walks the child process tree on Windows.
type taskkillKiller struct{}

func newProcessKiller() processKiller { return taskkillKiller{} }

func (taskkillKiller) Prepare(cmd *exec.Cmd) {}

func (taskkillKiller) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
