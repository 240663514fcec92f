package backend

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/cab"
)

func TestDirectProcessSpawnAndWait(t *testing.T) {
	d := DirectProcess{}
	plan := &cab.InvocationPlan{Argv: []string{"echo", "hello"}}
	handle, err := d.Spawn(context.Background(), plan)
	require.NoError(t, err)

	out, err := io.ReadAll(handle.Stdout)
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello")

	code, err := handle.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestDirectProcessNonZeroExit(t *testing.T) {
	d := DirectProcess{}
	plan := &cab.InvocationPlan{Argv: []string{"sh", "-c", "exit 3"}}
	handle, err := d.Spawn(context.Background(), plan)
	require.NoError(t, err)
	_, _ = io.ReadAll(handle.Stdout)
	_, _ = io.ReadAll(handle.Stderr)
	code, err := handle.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

type fakeBackend struct {
	name      string
	available bool
}

func (f fakeBackend) Name() string    { return f.name }
func (f fakeBackend) Available() bool { return f.available }
func (f fakeBackend) Build(cab.Image) (string, error) { return "", nil }
func (f fakeBackend) Prepare(p *cab.InvocationPlan) (*cab.InvocationPlan, error) { return p, nil }
func (f fakeBackend) Spawn(context.Context, *cab.InvocationPlan) (*ProcessHandle, error) {
	return nil, nil
}

func TestDispatcherResolvesClosestPreference(t *testing.T) {
	d := NewDispatcher(fakeBackend{name: "direct", available: true}, fakeBackend{name: "slurm", available: true})
	b, err := d.Resolve(Preference{Opts: "direct", Step: "slurm"})
	require.NoError(t, err)
	assert.Equal(t, "slurm", b.Name())
}

func TestDispatcherFallsBackToFirstAvailable(t *testing.T) {
	d := NewDispatcher(fakeBackend{name: "slurm", available: false}, fakeBackend{name: "direct", available: true})
	b, err := d.Resolve(Preference{})
	require.NoError(t, err)
	assert.Equal(t, "direct", b.Name())
}

func TestDispatcherUnavailableNamedBackend(t *testing.T) {
	d := NewDispatcher(fakeBackend{name: "slurm", available: false})
	_, err := d.Resolve(Preference{Step: "slurm"})
	require.Error(t, err)
	var unavail *UnavailableError
	assert.ErrorAs(t, err, &unavail)
}
