package cab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionVariants(t *testing.T) {
	a, err := ParseAction("PARSE_OUTPUT:eater:str")
	require.NoError(t, err)
	assert.Equal(t, ActionParseOutput, a.Kind)
	assert.Equal(t, "eater", a.Group)
	assert.Equal(t, "str", a.DType)

	a, err = ParseAction("PARSE_OUTPUT:outname:group1:integer")
	require.NoError(t, err)
	assert.Equal(t, "outname", a.OutputName)
	assert.Equal(t, "group1", a.Group)
	assert.Equal(t, "integer", a.DType)

	a, err = ParseAction("SUPPRESS")
	require.NoError(t, err)
	assert.Equal(t, ActionSuppress, a.Kind)

	a, err = ParseAction("SEVERITY:warning")
	require.NoError(t, err)
	assert.Equal(t, ActionSeverity, a.Kind)
	assert.Equal(t, "warning", a.Style)

	_, err = ParseAction("BOGUS")
	assert.Error(t, err)

	_, err = ParseAction("PARSE_OUTPUT:onlyonepart")
	assert.Error(t, err)
}
