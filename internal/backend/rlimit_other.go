//go:build windows || wasm

package backend

import "os/exec"

func applyLimits(cmd *exec.Cmd, limits ResourceLimits) error { return nil }

func probeOpenFileLimit() (uint64, error) { return 0, nil }

func interruptProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
