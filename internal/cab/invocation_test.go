package cab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/tree"
)

func TestBuildArgvOrderingAndKeyed(t *testing.T) {
	c := parseCabYAML(t, "runner", `
command: tool
inputs:
  infile:
    dtype: File
    required: true
    policies:
      positional_head: true
  verbose:
    dtype: bool
  threads:
    dtype: integer
  outfile:
    dtype: File
    policies:
      positional: true
`)
	bound := map[string]*tree.Node{
		"infile":  tree.NewString("in.ms"),
		"verbose": tree.NewBool(true),
		"threads": tree.NewInt(4),
		"outfile": tree.NewString("out.ms"),
	}
	argv, err := BuildArgv(c, bound, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"in.ms", "--verbose", "--threads", "4", "out.ms"}, argv)
}

func TestBuildArgvKeyValueAndRepeat(t *testing.T) {
	c := parseCabYAML(t, "runner2", `
command: tool
inputs:
  name:
    dtype: string
    policies:
      key_value: true
  tags:
    dtype: List[string]
    policies:
      repeat: "[]"
`)
	bound := map[string]*tree.Node{
		"name": tree.NewString("x"),
		"tags": tree.NewList(tree.NewString("a"), tree.NewString("b")),
	}
	argv, err := BuildArgv(c, bound, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--name=x", "--tags[]", "a", "--tags[]", "b"}, argv)
}

func TestBuildArgvSkipImplicits(t *testing.T) {
	c := parseCabYAML(t, "runner3", `
command: tool
inputs:
  computed:
    dtype: string
    policies:
      skip_implicits: true
`)
	bound := map[string]*tree.Node{"computed": tree.NewString("x")}
	argv, err := BuildArgv(c, bound, map[string]bool{"computed": true})
	require.NoError(t, err)
	assert.Empty(t, argv)
}

func TestBuildArgvExplicitTrueFalse(t *testing.T) {
	c := parseCabYAML(t, "runner4", `
command: tool
inputs:
  mode:
    dtype: bool
    policies:
      explicit_true: "yes"
      explicit_false: "no"
`)
	argv, err := BuildArgv(c, map[string]*tree.Node{"mode": tree.NewBool(false)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--mode", "no"}, argv)
}

func TestBuildArgvFormatElementwise(t *testing.T) {
	c := parseCabYAML(t, "runner5", `
command: tool
inputs:
  channels:
    dtype: List[integer]
    policies:
      repeat: "repeat"
      format: "ch{}"
`)
	bound := map[string]*tree.Node{
		"channels": tree.NewList(tree.NewInt(1), tree.NewInt(2)),
	}
	argv, err := BuildArgv(c, bound, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--channels", "ch1", "--channels", "ch2"}, argv)
}
