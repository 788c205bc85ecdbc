// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !windows

package engine

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// groupKiller terminates a script by killing its process group. The child is
// started as a group leader so a SIGKILL to the negated pgid reaches every
// descendant, including ones the script forked itself.
type groupKiller struct{}

func newProcessKiller() processKiller { return groupKiller{} }

func (groupKiller) Prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (groupKiller) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		// Group already gone; fall back to the single process.
		return cmd.Process.Kill()
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}
