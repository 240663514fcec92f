package subst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-run/stepwise/internal/tree"
)

func nsWithCurrent(pairs ...string) *Namespaces {
	ns := NewNamespaces()
	cur := tree.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		cur.Set(pairs[i], tree.NewString(pairs[i+1]))
	}
	ns.Current = cur
	return ns
}

func TestSubstituteLiteralBraceEscape(t *testing.T) {
	ns := NewNamespaces()
	out, unresolved, err := Substitute("a {{b}} c", ns)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Equal(t, "a {b} c", out)
}

func TestSubstituteNamespaceLookup(t *testing.T) {
	ns := nsWithCurrent("who", "cow")
	out, unresolved, err := Substitute("the {current.who} jumped", ns)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Equal(t, "the cow jumped", out)
}

func TestSubstituteUnresolvedTracked(t *testing.T) {
	ns := NewNamespaces()
	out, unresolved, err := Substitute("{current.missing}", ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"current.missing"}, unresolved)
	assert.Equal(t, "", out)
}

func TestSubstituteFormatSpec(t *testing.T) {
	ns := NewNamespaces()
	ns.Recipe = tree.NewMap()
	ns.Recipe.Set("loop", tree.NewInt(3))
	out, unresolved, err := Substitute("iter {recipe.loop:02d}", ns)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Equal(t, "iter 03", out)
}

func TestIsFormulaEscape(t *testing.T) {
	isFormula, escaped, body := IsFormula("==literal")
	assert.False(t, isFormula)
	assert.True(t, escaped)
	assert.Equal(t, "=literal", body)

	isFormula, escaped, body = IsFormula("=previous.eater")
	assert.True(t, isFormula)
	assert.False(t, escaped)
	assert.Equal(t, "previous.eater", body)

	isFormula, escaped, body = IsFormula("plain text")
	assert.False(t, isFormula)
	assert.False(t, escaped)
	assert.Equal(t, "plain text", body)
}

func TestEvalStringFormula(t *testing.T) {
	ns := NewNamespaces()
	ns.Previous = tree.NewMap()
	ns.Previous.Set("eater", tree.NewString("cow"))
	ns.Previous.Set("num_dogs", tree.NewInt(5))

	who, unset, err := EvalString("=previous.eater", ns)
	require.NoError(t, err)
	assert.False(t, unset)
	assert.Equal(t, "cow", who.AsString())

	num, unset, err := EvalString("=previous.num_dogs", ns)
	require.NoError(t, err)
	assert.False(t, unset)
	assert.Equal(t, int64(5), num.Int)
}

// TestWranglerCapturedSubstitution mirrors the wrangler-captured-variables
// scenario: a step's outputs are parsed into "previous", then a later
// step's text template pulls them in via formulas.
func TestWranglerCapturedSubstitution(t *testing.T) {
	ns := NewNamespaces()
	ns.Previous = tree.NewMap()
	ns.Previous.Set("eater", tree.NewString("bloody cow"))
	ns.Previous.Set("num_dogs", tree.NewInt(5))

	whoNode, _, err := EvalString("=previous.eater", ns)
	require.NoError(t, err)
	numNode, _, err := EvalString("=previous.num_dogs", ns)
	require.NoError(t, err)

	current := tree.NewMap()
	current.Set("who", whoNode)
	current.Set("num", numNode)
	ns.Current = current

	out, unresolved, err := Substitute("The {current.who} ate {current.num} dogs!", ns)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Equal(t, "The bloody cow ate 5 dogs!", out)
}

func TestFormulaUnsetInPureLookup(t *testing.T) {
	ns := NewNamespaces()
	expr, err := ParseFormula("EXISTS(current.missing)")
	require.NoError(t, err)
	n, unset, err := Eval(expr, ns)
	require.NoError(t, err)
	assert.False(t, unset)
	assert.False(t, n.Bool)
}

func TestFormulaUnsetInArithmeticErrors(t *testing.T) {
	ns := NewNamespaces()
	expr, err := ParseFormula("current.missing + 1")
	require.NoError(t, err)
	_, _, err = Eval(expr, ns)
	require.Error(t, err)
	var unsetErr *UnsetInExpression
	assert.ErrorAs(t, err, &unsetErr)
}

func TestFormulaIfUnsetFallback(t *testing.T) {
	ns := NewNamespaces()
	expr, err := ParseFormula(`IF(current.missing, "yes", "no", "fallback")`)
	require.NoError(t, err)
	n, unset, err := Eval(expr, ns)
	require.NoError(t, err)
	assert.False(t, unset)
	assert.Equal(t, "fallback", n.String)
}

func TestFormulaLogicalKeywordsAndSymbols(t *testing.T) {
	ns := NewNamespaces()
	for _, formula := range []string{"1 < 2 and 3 > 2", "1 < 2 && 3 > 2", "not (1 > 2)", "!(1 > 2)"} {
		expr, err := ParseFormula(formula)
		require.NoError(t, err, formula)
		n, unset, err := Eval(expr, ns)
		require.NoError(t, err, formula)
		assert.False(t, unset, formula)
		assert.True(t, n.Bool, formula)
	}
}

func TestWildcardStepLookupPicksLargestLabel(t *testing.T) {
	ns := NewNamespaces()
	s1 := tree.NewMap()
	s1.Set("ms", tree.NewInt(10))
	s2 := tree.NewMap()
	s2.Set("ms", tree.NewInt(20))
	ns.Steps["a1"] = s1
	ns.Steps["a2"] = s2

	n, ok := ns.Lookup("steps.a*.ms")
	require.True(t, ok)
	assert.Equal(t, int64(20), n.Int)
}

func TestLookupWithListIndex(t *testing.T) {
	ns := NewNamespaces()
	ns.Current = tree.NewMap()
	ns.Current.Set("items", tree.NewList(tree.NewString("a"), tree.NewString("b")))
	n, ok := ns.Lookup("current.items[1]")
	require.True(t, ok)
	assert.Equal(t, "b", n.String)
}

func TestFormulaRangeAndMinMax(t *testing.T) {
	ns := NewNamespaces()
	expr, err := ParseFormula("MAX(RANGE(5))")
	require.NoError(t, err)
	n, unset, err := Eval(expr, ns)
	require.NoError(t, err)
	assert.False(t, unset)
	assert.Equal(t, int64(4), n.Int)
}

func TestFormulaUnsetAndEmptySentinels(t *testing.T) {
	ns := NewNamespaces()
	expr, err := ParseFormula("UNSET")
	require.NoError(t, err)
	_, unset, err := Eval(expr, ns)
	require.NoError(t, err)
	assert.True(t, unset)

	expr, err = ParseFormula("EMPTY")
	require.NoError(t, err)
	n, unset, err := Eval(expr, ns)
	require.NoError(t, err)
	assert.False(t, unset)
	assert.Equal(t, "", n.String)
}
