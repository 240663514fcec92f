package runtime

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/logging"
	"github.com/stepwise-run/stepwise/internal/tree"
)

type memSink struct {
	records []logging.Record
}

func (m *memSink) Emit(r logging.Record) { m.records = append(m.records, r) }
func (m *memSink) Close() error          { return nil }

func mustCab(t *testing.T, src string) *cab.Cab {
	t.Helper()
	// Parses src as a cab named "echoer"; callers add any wrangler rules
	// they need.
	n, err := tree.ParseYAML([]byte(src))
	require.NoError(t, err)
	c, err := cab.Parse("echoer", n)
	require.NoError(t, err)
	return c
}

func TestApplyWranglerParseOutputPrecedence(t *testing.T) {
	re := regexp.MustCompile(`eater: (?P<who>\w+)`)
	rules := []cab.WranglerRule{{
		Pattern: re,
		Actions: []cab.Action{{Kind: cab.ActionParseOutput, OutputName: "who", Group: "who", DType: "str"}},
	}}
	captured := newCaptured()
	v := applyWrangler("eater: cow", rules, nil, captured)
	assert.False(t, v.Suppress)
	who, ok := captured.Get("who")
	require.True(t, ok)
	assert.Equal(t, "cow", who.String)

	captured.applyParseJSONOutputDict(`{"outputs":{"who":"dog"}}`)
	who, ok = captured.Get("who")
	require.True(t, ok)
	assert.Equal(t, "dog", who.String)
}

func TestApplyWranglerSuppressAndError(t *testing.T) {
	rules := []cab.WranglerRule{{
		Pattern: regexp.MustCompile(`^DEBUG`),
		Actions: []cab.Action{{Kind: cab.ActionSuppress}},
	}, {
		Pattern: regexp.MustCompile(`fatal`),
		Actions: []cab.Action{{Kind: cab.ActionError, Text: "tool reported fatal"}},
	}}
	captured := newCaptured()
	v := applyWrangler("DEBUG fatal error", rules, nil, captured)
	assert.True(t, v.Suppress)
	require.Len(t, v.Errors, 1)
	assert.Equal(t, "tool reported fatal", v.Errors[0])
}

func TestFingerprintExistsAndFresh(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("a"), 0644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(out, []byte("b"), 0644))

	assert.True(t, Exists([]string{out}))
	fresh, err := IsFresh([]string{out}, []string{in})
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = IsFresh([]string{in}, []string{out})
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestRunDirectProcessCapture(t *testing.T) {
	c := mustCab(t, `
command: sh
flavour: binary
`)
	c.Management.Wranglers = []cab.WranglerRule{{
		Pattern: regexp.MustCompile(`result=(?P<v>\w+)`),
		Actions: []cab.Action{{Kind: cab.ActionParseOutput, OutputName: "v", Group: "v", DType: "str"}},
	}}
	plan := &cab.InvocationPlan{Argv: []string{"sh", "-c", "echo result=ok"}}
	sink := &memSink{}

	res, err := Run(context.Background(), backend.DirectProcess{}, plan, c, "s1", 0, sink)
	require.NoError(t, err)
	v, ok := res.Outputs.Get("v")
	require.True(t, ok)
	assert.Equal(t, "ok", v.String)
	assert.NotEmpty(t, sink.records)
}

func TestRunNonZeroExitIsCabFailure(t *testing.T) {
	c := mustCab(t, `
command: sh
flavour: binary
`)
	plan := &cab.InvocationPlan{Argv: []string{"sh", "-c", "exit 2"}}
	_, err := Run(context.Background(), backend.DirectProcess{}, plan, c, "s1", 0, nil)
	require.Error(t, err)
	var fail *CabFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, 2, fail.ExitCode)
}

func TestRunDeclareSuccessRescuesNonZeroExit(t *testing.T) {
	c := mustCab(t, `
command: sh
flavour: binary
`)
	c.Management.Wranglers = []cab.WranglerRule{{
		Pattern: regexp.MustCompile(`ok anyway`),
		Actions: []cab.Action{{Kind: cab.ActionDeclareSuccess}},
	}}
	plan := &cab.InvocationPlan{Argv: []string{"sh", "-c", "echo ok anyway; exit 1"}}
	res, err := Run(context.Background(), backend.DirectProcess{}, plan, c, "s1", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}
