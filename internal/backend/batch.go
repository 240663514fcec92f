package backend

import (
	"context"
	"os/exec"

	"github.com/stepwise-run/stepwise/internal/cab"
)

// BatchWrapper composes above any other Backend: it wraps the prepared
// plan's argv with a submission command (e.g. "srun", "qsub --wait --")
// derived from merged options, then delegates spawning to Inner (§4.8).
type BatchWrapper struct {
	Inner       Backend
	SubmitName  string
	SubmitArgv  []string // prefix prepended to the inner plan's argv
}

func (b BatchWrapper) Name() string { return b.SubmitName }

func (b BatchWrapper) Available() bool {
	if _, err := exec.LookPath(b.SubmitArgv[0]); err != nil {
		return false
	}
	return b.Inner.Available()
}

func (b BatchWrapper) Build(image cab.Image) (string, error) {
	return b.Inner.Build(image)
}

func (b BatchWrapper) Prepare(plan *cab.InvocationPlan) (*cab.InvocationPlan, error) {
	prepared, err := b.Inner.Prepare(plan)
	if err != nil {
		return nil, err
	}
	wrapped := *prepared
	wrapped.Argv = append(append([]string{}, b.SubmitArgv...), prepared.Argv...)
	return &wrapped, nil
}

func (b BatchWrapper) Spawn(ctx context.Context, plan *cab.InvocationPlan) (*ProcessHandle, error) {
	return b.Inner.Spawn(ctx, plan)
}
