package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/tree"
)

func TestParseShorthand(t *testing.T) {
	n := tree.NewString(`int = 5 * "count of widgets"`)
	s, err := Parse("count", n)
	require.NoError(t, err)
	assert.Equal(t, TInteger, s.DType.Kind)
	require.True(t, s.HasDefault)
	assert.EqualValues(t, 5, s.Default.Int)
	assert.Equal(t, "count of widgets", s.Info)
}

func TestParseLonghandRequired(t *testing.T) {
	m := tree.NewMap()
	m.Set("dtype", tree.NewString("File"))
	m.Set("required", tree.NewBool(true))
	s, err := Parse("ms", m)
	require.NoError(t, err)
	assert.True(t, s.Required)
	assert.True(t, s.IsFileLike())
	assert.Equal(t, CategoryRequired, EffectiveCategory(s))
}

func TestInvariantAtMostOneOf(t *testing.T) {
	m := tree.NewMap()
	m.Set("dtype", tree.NewString("int"))
	m.Set("required", tree.NewBool(true))
	m.Set("default", tree.NewInt(1))
	_, err := Parse("x", m)
	require.Error(t, err)
}

func TestTypecheckCoercesStringToInt(t *testing.T) {
	v, err := Typecheck(tree.NewString("5"), &DType{Kind: TInteger})
	require.NoError(t, err)
	assert.EqualValues(t, 5, v.Int)
}

func TestTypecheckCoercesListLiteral(t *testing.T) {
	dt, err := ParseDType("List[int]")
	require.NoError(t, err)
	v, err := Typecheck(tree.NewString("[1,2,3]"), dt)
	require.NoError(t, err)
	require.Len(t, v.List, 3)
	assert.EqualValues(t, 2, v.List[1].Int)
}

func TestTypecheckRejectsAmbiguous(t *testing.T) {
	_, err := Typecheck(tree.NewString("not-a-number"), &DType{Kind: TInteger})
	require.Error(t, err)
	var mismatch *TypeMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestGroupParsing(t *testing.T) {
	m := tree.NewMap()
	sub := tree.NewMap()
	sub.Set("dtype", tree.NewString("int"))
	g := tree.NewMap()
	g.Set("x", sub)
	m.Set("g", g)
	out, order, err := ParseMap(m)
	require.NoError(t, err)
	require.Contains(t, order, "g")
	assert.True(t, out["g"].IsGroup())
	member := out["g"].GroupMember("x")
	require.NotNil(t, member)
	assert.Equal(t, TInteger, member.DType.Kind)
}

func TestParseDTypeComposite(t *testing.T) {
	dt, err := ParseDType("Union[List[int],str]")
	require.NoError(t, err)
	assert.Equal(t, TUnion, dt.Kind)
	require.Len(t, dt.Elem, 2)
	assert.Equal(t, TList, dt.Elem[0].Kind)
}
