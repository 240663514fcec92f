package backend

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// CheckOpenFileBudget compares a requested max-open-files resource limit
// against how many file descriptors this process already has open, via
// gopsutil, so a run requesting an unreasonably tight limit fails fast
// instead of starving mid-run.
func CheckOpenFileBudget(limits ResourceLimits) error {
	if limits.MaxOpenFiles == 0 {
		return nil
	}
	proc, err := process.NewProcess(int32(currentPID()))
	if err != nil {
		return nil // gopsutil unavailable on this platform; skip the check
	}
	fds, err := proc.NumFDs()
	if err != nil {
		return nil
	}
	if uint64(fds) >= limits.MaxOpenFiles {
		return fmt.Errorf("backend: current open file count %d already meets or exceeds the requested limit %d", fds, limits.MaxOpenFiles)
	}
	return nil
}
