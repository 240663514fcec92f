package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/recipe"
	"github.com/stepwise-run/stepwise/internal/tree"
)

func mustCab(t *testing.T, src string) *cab.Cab {
	t.Helper()
	n, err := tree.ParseYAML([]byte(src))
	require.NoError(t, err)
	c, err := cab.Parse("echoer", n)
	require.NoError(t, err)
	return c
}

func mustRecipe(t *testing.T, src string) *recipe.Recipe {
	t.Helper()
	n, err := tree.ParseYAML([]byte(src))
	require.NoError(t, err)
	r, err := recipe.Parse("r", n)
	require.NoError(t, err)
	return r
}

func newScheduler(cabs map[string]*cab.Cab) *Scheduler {
	return &Scheduler{
		Cabs:       cabs,
		Recipes:    map[string]*recipe.Recipe{},
		Dispatcher: backend.NewDispatcher(backend.DirectProcess{}),
		ProcessEnv: map[string]string{},
	}
}

func TestRunRecipeSingleStepProducesOutput(t *testing.T) {
	c := mustCab(t, `
command: sh
flavour: binary
inputs:
  msg: str
outputs:
  result: str = ""
`)
	c.Management.Wranglers = []cab.WranglerRule{{
		Pattern: regexp.MustCompile(`out: (?P<v>\w+)`),
		Actions: []cab.Action{{Kind: cab.ActionParseOutput, OutputName: "result", Group: "v", DType: "str"}},
	}}
	// Run echo rather than a shell, so the step prints its msg param and
	// the wrangler captures the token after "out: ".
	c.Flavour.Command = "echo"

	r := mustRecipe(t, `
inputs:
  greeting: str = "hello"
outputs:
  result:
    dtype: str
    aliases: [say.result]
steps:
  - say:
      cab: echoer
`)

	sched := newScheduler(map[string]*cab.Cab{"echoer": c})

	step := r.Steps[0]
	step.Params["msg"] = tree.NewString("out: ok")

	_ = step
	outcome, err := sched.RunRecipe(context.Background(), r, map[string]*tree.Node{}, Selection{}, "", "")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Len(t, outcome.Steps, 1)
	require.NotNil(t, outcome.Outputs["result"])
	assert.Equal(t, "ok", outcome.Outputs["result"].String)
}

func TestRunRecipeSkipsStepViaSkipIfOutputsExist(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	c := mustCab(t, `
command: sh
flavour: binary
outputs:
  out: file
`)

	r := mustRecipe(t, `
steps:
  - build:
      cab: thing
      skip_if_outputs: exist
`)
	r.Steps[0].Params["out"] = tree.NewString(existing)

	sched := newScheduler(map[string]*cab.Cab{"thing": c})
	outcome, err := sched.RunRecipe(context.Background(), r, map[string]*tree.Node{}, Selection{}, "", "")
	require.NoError(t, err)
	require.Len(t, outcome.Steps, 1)
	assert.Equal(t, StateSkipped, outcome.Steps[0].State)
}

func TestRunRecipeHonoursExplicitStepSelection(t *testing.T) {
	c := mustCab(t, `
command: true
flavour: binary
`)
	r := mustRecipe(t, `
steps:
  - a:
      cab: noop
      tags: [never]
  - b:
      cab: noop
`)
	for _, st := range r.Steps {
		st.Params = map[string]*tree.Node{}
	}

	sched := newScheduler(map[string]*cab.Cab{"noop": c})
	sel := Selection{Steps: []string{"a"}}
	outcome, err := sched.RunRecipe(context.Background(), r, map[string]*tree.Node{}, sel, "", "")
	require.NoError(t, err)
	require.Len(t, outcome.Steps, 2)
	assert.Equal(t, "a", outcome.Steps[0].Label)
	assert.NotEqual(t, StateSkipped, outcome.Steps[0].State)
}
