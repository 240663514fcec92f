//go:build !windows && !wasm

package backend

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// applyLimits puts the child in its own process group so interruptProcess
// can signal it with its descendants. No rlimit is set on the child.
func applyLimits(cmd *exec.Cmd, limits ResourceLimits) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	return nil
}

// probeOpenFileLimit reads the current soft RLIMIT_NOFILE. Nothing in the
// module calls it.
func probeOpenFileLimit() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	return rl.Cur, nil
}

func interruptProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative pid signals the whole process group, set up via Setpgid
	// above, so a shell-wrapped child is interrupted along with its
	// descendants.
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}
