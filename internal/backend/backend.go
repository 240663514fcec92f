// Package backend implements the Backend Dispatcher (§4.8): selection
// among backend adapters by a merged preference chain, and the single
// concrete "direct process" adapter the core ships.
package backend

import (
	"context"
	"io"
	"os/exec"

	"github.com/stepwise-run/stepwise/internal/cab"
)

// ProcessHandle is what a backend returns once a plan has been spawned:
// two readable streams and an exit-code future (§4.7).
type ProcessHandle struct {
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	// Wait blocks until the process exits, returning its exit code (or
	// -1 alongside a non-nil error for a launch/signal failure).
	Wait func() (int, error)

	// Signal delivers an interrupt to the running process (Cancellation,
	// §5); a batch-scheduler wrapper forwards it to its submitted job.
	Signal func() error
}

// Backend is the interface every adapter (direct process, container,
// batch scheduler wrapper) satisfies (§4.8).
type Backend interface {
	Name() string
	Available() bool
	Prepare(plan *cab.InvocationPlan) (*cab.InvocationPlan, error)
	Spawn(ctx context.Context, plan *cab.InvocationPlan) (*ProcessHandle, error)
	Build(image cab.Image) (string, error)
}

// Dispatcher selects among registered backends by name, in the merge
// order opts.backend → recipe.backend → cab.backend → step.backend
// (closest-to-the-step wins); only when no name is set does it fall back
// to the first available one in registration order.
type Dispatcher struct {
	backends []Backend
}

// NewDispatcher returns a Dispatcher seeded with the given backends, in
// the priority order they should be tried when no name matches.
func NewDispatcher(backends ...Backend) *Dispatcher {
	return &Dispatcher{backends: backends}
}

// Preference is the merge of opts/recipe/cab/step backend names, most
// specific first; the first non-empty entry decides, whether or not that
// backend is available.
type Preference struct {
	Opts, Recipe, Cab, Step string
}

// Resolve walks pref from step to opts (closest wins) and uses the first
// non-empty name: it returns that backend, or an UnavailableError if no
// backend of that name is registered or it is not available. If no name is
// set, it returns the first available backend in registration order.
func (d *Dispatcher) Resolve(pref Preference) (Backend, error) {
	for _, name := range []string{pref.Step, pref.Cab, pref.Recipe, pref.Opts} {
		if name == "" {
			continue
		}
		for _, b := range d.backends {
			if b.Name() == name {
				if !b.Available() {
					return nil, &UnavailableError{Name: name}
				}
				return b, nil
			}
		}
		return nil, &UnavailableError{Name: name}
	}
	for _, b := range d.backends {
		if b.Available() {
			return b, nil
		}
	}
	return nil, &UnavailableError{Name: "<any>"}
}

// UnavailableError reports BackendUnavailable (§7): no selected backend's
// probe succeeded.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string {
	return "backend: no available backend named " + e.Name
}

// DirectProcess execs the plan's argv directly with os/exec; it is always
// available and ignores Image/Mounts (§4.8).
type DirectProcess struct {
	Limits ResourceLimits
}

func (DirectProcess) Name() string      { return "direct" }
func (DirectProcess) Available() bool   { return true }
func (DirectProcess) Build(cab.Image) (string, error) { return "", nil }

func (DirectProcess) Prepare(plan *cab.InvocationPlan) (*cab.InvocationPlan, error) {
	return plan, nil
}

func (d DirectProcess) Spawn(ctx context.Context, plan *cab.InvocationPlan) (*ProcessHandle, error) {
	if len(plan.Argv) == 0 {
		return nil, &UnavailableError{Name: "direct: empty argv"}
	}
	cmd := exec.CommandContext(ctx, plan.Argv[0], plan.Argv[1:]...)
	cmd.Dir = plan.Workdir
	cmd.Env = envSlice(plan.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := applyLimits(cmd, d.Limits); err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &ProcessHandle{
		Stdout: stdout,
		Stderr: stderr,
		Wait: func() (int, error) {
			err := cmd.Wait()
			if err == nil {
				return 0, nil
			}
			if exitErr, ok := err.(*exec.ExitError); ok {
				return exitErr.ExitCode(), nil
			}
			return -1, err
		},
		Signal: func() error { return interruptProcess(cmd) },
	}, nil
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
