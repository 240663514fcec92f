package cab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/tree"
)

func parseCabYAML(t *testing.T, name, src string) *Cab {
	t.Helper()
	n, err := tree.ParseYAML([]byte(src))
	require.NoError(t, err)
	c, err := Parse(name, n)
	require.NoError(t, err)
	return c
}

func TestParseBinaryCab(t *testing.T) {
	c := parseCabYAML(t, "copy", `
command: cp
inputs:
  src:
    dtype: File
    required: true
  dst:
    dtype: File
    required: true
    policies:
      positional: true
outputs:
  dst:
    dtype: File
    implicit: "{current.dst}"
`)
	assert.Equal(t, FlavourBinary, c.Flavour.Kind)
	assert.Equal(t, "cp", c.Flavour.Command)
	assert.Len(t, c.InputOrder, 2)
	assert.True(t, c.Outputs["dst"].IsFileLike())
}

func TestParseWranglerRules(t *testing.T) {
	c := parseCabYAML(t, "greps", `
command: grep
management:
  wranglers:
    "No such file":
      - DECLARE_SUCCESS
      - WARNING:deliberate
    "/fox/":
      - "ERROR:Nobody expected the fox!"
`)
	require.Len(t, c.Management.Wranglers, 2)
	assert.Equal(t, ActionDeclareSuccess, c.Management.Wranglers[0].Actions[0].Kind)
	assert.Equal(t, ActionWarning, c.Management.Wranglers[0].Actions[1].Kind)
	assert.Equal(t, "deliberate", c.Management.Wranglers[0].Actions[1].Text)
	assert.Equal(t, ActionError, c.Management.Wranglers[1].Actions[0].Kind)
	assert.Equal(t, "Nobody expected the fox!", c.Management.Wranglers[1].Actions[0].Text)
}

func TestParseNamedCaptures(t *testing.T) {
	c := parseCabYAML(t, "catter", `
command: cat
management:
  wranglers:
    '(?P<eater>\w+) eats the (?P<num_dogs>\d+) lazy dogs':
      - PARSE_OUTPUT:eater:str
      - PARSE_OUTPUT:num_dogs:integer
`)
	require.Len(t, c.Management.Wranglers, 1)
	actions := c.Management.Wranglers[0].Actions
	require.Len(t, actions, 2)
	assert.Equal(t, "eater", actions[0].Group)
	assert.Equal(t, "str", actions[0].DType)
	assert.Equal(t, "num_dogs", actions[1].Group)
	assert.Equal(t, "integer", actions[1].DType)
}

func TestParseInlineFlavour(t *testing.T) {
	c := parseCabYAML(t, "inliner", `
flavour:
  kind: inline
  interpreter: python3
  input_vars: [x, y]
  output_vars: [z]
  code: "z = x + y"
`)
	assert.Equal(t, FlavourInline, c.Flavour.Kind)
	assert.Equal(t, "python3", c.Flavour.Interpreter)
	assert.Equal(t, []string{"x", "y"}, c.Flavour.InputVars)
	assert.Equal(t, []string{"z"}, c.Flavour.OutputVars)
	assert.Equal(t, "z = x + y", c.Flavour.Code)
}
