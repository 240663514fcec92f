package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, y string) *Node {
	t.Helper()
	n, err := ParseYAML([]byte(y))
	require.NoError(t, err)
	return n
}

func TestMergeKeyWise(t *testing.T) {
	a := mustParse(t, "a: 1\nb:\n  x: 1\n")
	b := mustParse(t, "b:\n  y: 2\nc: 3\n")
	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.EqualValues(t, 1, merged.Path("a").Int)
	assert.EqualValues(t, 1, merged.Path("b.x").Int)
	assert.EqualValues(t, 2, merged.Path("b.y").Int)
	assert.EqualValues(t, 3, merged.Path("c").Int)
}

func TestMergeOverwritesScalarLeaf(t *testing.T) {
	a := mustParse(t, "a: 1\n")
	b := mustParse(t, "a: hello\n")
	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, "hello", merged.Path("a").String)
}

func TestMergeConflictMapVsScalar(t *testing.T) {
	a := mustParse(t, "a:\n  x: 1\n")
	b := mustParse(t, "a: scalar\n")
	_, err := Merge(a, b)
	require.Error(t, err)
	var mc *MergeConflict
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "a", mc.Path)
}

// MergeAssociativity checks merge(merge({}, A), B) == merge({}, merge(A, B))
// for mapping keys, one of the quantified invariants in §8.
func TestMergeAssociativity(t *testing.T) {
	a := mustParse(t, "m:\n  a: 1\n  b: 2\n")
	b := mustParse(t, "m:\n  b: 3\n  c: 4\n")

	left, err := Merge(mustParse(t, "{}"), a.Clone())
	require.NoError(t, err)
	left, err = Merge(left, b.Clone())
	require.NoError(t, err)

	inner, err := Merge(a.Clone(), b.Clone())
	require.NoError(t, err)
	right, err := Merge(mustParse(t, "{}"), inner)
	require.NoError(t, err)

	assert.EqualValues(t, left.Path("m.a").Int, right.Path("m.a").Int)
	assert.EqualValues(t, left.Path("m.b").Int, right.Path("m.b").Int)
	assert.EqualValues(t, left.Path("m.c").Int, right.Path("m.c").Int)
}
