package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cabpkg "github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/tree"
)

func mustCab(t *testing.T, name, src string) *cabpkg.Cab {
	t.Helper()
	n, err := tree.ParseYAML([]byte(src))
	require.NoError(t, err)
	c, err := cabpkg.Parse(name, n)
	require.NoError(t, err)
	return c
}

func mustRecipe(t *testing.T, name, src string) *Recipe {
	t.Helper()
	n, err := tree.ParseYAML([]byte(src))
	require.NoError(t, err)
	r, err := Parse(name, n)
	require.NoError(t, err)
	return r
}

func TestParseStepsAndForLoop(t *testing.T) {
	r := mustRecipe(t, "demo", `
inputs:
  ms:
    dtype: MS
    required: true
for_loop:
  var: loop
  over: [1, 2, 3]
  scatter: -1
steps:
  - s1:
      cab: copier
      params:
        ms: "{recipe.ms}"
  - s2:
      cab: copier
`)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, "copier", r.Steps[0].Uses)
	require.NotNil(t, r.ForLoop)
	assert.Equal(t, "loop", r.ForLoop.Var)
	assert.Len(t, r.ForLoop.OverLiteral, 3)
	assert.Equal(t, -1, r.ForLoop.Scatter)
}

func TestAliasPropagation(t *testing.T) {
	copier := mustCab(t, "copier", `
command: cp
inputs:
  ms:
    dtype: MS
    required: true
`)
	cabs := map[string]*cabpkg.Cab{"copier": copier}

	r := mustRecipe(t, "demo2", `
inputs:
  ms:
    dtype: MS
aliases:
  ms: [s1.ms, s2.ms]
steps:
  - s1:
      cab: copier
  - s2:
      cab: copier
`)
	bound, err := Prevalidate(r, map[string]*tree.Node{"ms": tree.NewString("foo.ms")}, cabs)
	require.NoError(t, err)
	assert.Equal(t, "foo.ms", bound.StepParams["s1"]["ms"].String)
	assert.Equal(t, "foo.ms", bound.StepParams["s2"]["ms"].String)
}

func TestAliasPropagationUpFromStepDefault(t *testing.T) {
	copier := mustCab(t, "copier", `
command: cp
inputs:
  ms:
    dtype: MS
    default: bar.ms
`)
	cabs := map[string]*cabpkg.Cab{"copier": copier}

	r := mustRecipe(t, "demo3", `
inputs:
  ms:
    dtype: MS
aliases:
  ms: [s1.ms, s2.ms]
steps:
  - s1:
      cab: copier
  - s2:
      cab: copier
`)
	bound, err := Prevalidate(r, nil, cabs)
	require.NoError(t, err)
	assert.Equal(t, "bar.ms", bound.Recipe["ms"].String)
	assert.Equal(t, "bar.ms", bound.StepParams["s2"]["ms"].String)
}

func TestAssignBasedOnDefaultFallback(t *testing.T) {
	copier := mustCab(t, "copier", `
command: cp
inputs:
  mode:
    dtype: string
`)
	cabs := map[string]*cabpkg.Cab{"copier": copier}

	r := mustRecipe(t, "demo4", `
inputs:
  kind:
    dtype: string
assign_based_on:
  kind:
    special:
      mode: "fast"
    DEFAULT:
      mode: "slow"
steps:
  - s1:
      cab: copier
`)
	bound, err := Prevalidate(r, map[string]*tree.Node{"kind": tree.NewString("other")}, cabs)
	require.NoError(t, err)
	assert.Equal(t, "slow", bound.Recipe["mode"].String)
}

func TestAssignBasedOnUnmatchedNoDefault(t *testing.T) {
	r := mustRecipe(t, "demo5", `
inputs:
  kind:
    dtype: string
assign_based_on:
  kind:
    special:
      mode: "fast"
steps: []
`)
	_, err := Prevalidate(r, map[string]*tree.Node{"kind": tree.NewString("other")}, map[string]*cabpkg.Cab{})
	require.Error(t, err)
	var unmatched *AssignBasedOnUnmatched
	assert.ErrorAs(t, err, &unmatched)
}

func TestImmuneInputNotOverwrittenByAssign(t *testing.T) {
	r := mustRecipe(t, "demo6", `
inputs:
  mode:
    dtype: string
assign:
  mode: "overridden"
steps: []
`)
	bound, err := Prevalidate(r, map[string]*tree.Node{"mode": tree.NewString("explicit")}, map[string]*cabpkg.Cab{})
	require.NoError(t, err)
	assert.Equal(t, "explicit", bound.Recipe["mode"].String)
}
