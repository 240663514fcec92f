package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadResolvesInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yml", "cabs:\n  mycab:\n    command: echo\n")
	main := writeFile(t, dir, "main.yml", "_include:\n  - base.yml\nvars:\n  x: 1\n")

	l := NewLoader()
	n, err := l.Load(main)
	require.NoError(t, err)

	assert.Nil(t, n.Get("_include"))
	assert.Equal(t, "echo", n.Path("cabs.mycab.command").String)
	assert.EqualValues(t, 1, n.Path("vars.x").Int)
}

func TestLoadOptionalIncludeMissing(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.yml", "_include:\n  - missing.yml [optional]\nvars:\n  x: 1\n")
	l := NewLoader()
	n, err := l.Load(main)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.Path("vars.x").Int)
}

func TestLoadMissingRequiredIncludeFails(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.yml", "_include:\n  - missing.yml\n")
	l := NewLoader()
	_, err := l.Load(main)
	require.Error(t, err)
	var notFound *IncludeNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestResolveUseMergesTargetAndKeepsLocalKeys(t *testing.T) {
	l := NewLoader()
	n, err := l.LoadString(`
lib:
  recipes:
    base:
      steps:
        - s1
vars:
  a: 1
derived:
  _use: lib.recipes.base
  extra: true
`)
	require.NoError(t, err)
	assert.Nil(t, n.Path("derived._use"))
	assert.True(t, n.Path("derived.extra").Bool)
	require.Len(t, n.Path("derived.steps").List, 1)
}

func TestScrubRemovesPath(t *testing.T) {
	l := NewLoader()
	n, err := l.LoadString("a:\n  b: 1\n  c: 2\n_scrub:\n  - a.b\n")
	require.NoError(t, err)
	assert.Nil(t, n.Path("a.b"))
	assert.NotNil(t, n.Path("a.c"))
}

func TestScrubMissingPathFails(t *testing.T) {
	l := NewLoader()
	_, err := l.LoadString("a: 1\n_scrub:\n  - nope\n")
	require.Error(t, err)
	var missing *ScrubPathMissing
	require.ErrorAs(t, err, &missing)
}

func TestFixedPointHasNoReservedKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inc.yml", "lib:\n  recipes:\n    r:\n      x: 1\n")
	main := writeFile(t, dir, "main.yml", "_include:\n  - inc.yml\nderived:\n  _use: lib.recipes.r\n_scrub: []\n")
	l := NewLoader()
	n, err := l.Load(main)
	require.NoError(t, err)
	for _, k := range []string{"_include", "_include_post", "_use", "_scrub"} {
		assertNoReservedKeyAnywhere(t, n, k)
	}
}

func assertNoReservedKeyAnywhere(t *testing.T, n *Node, key string) {
	t.Helper()
	if n == nil {
		return
	}
	if n.Kind == KindMap {
		assert.Nil(t, n.Get(key), "reserved key %q should not survive", key)
		for _, k := range n.Keys {
			assertNoReservedKeyAnywhere(t, n.Items[k], key)
		}
	}
	if n.Kind == KindList {
		for _, item := range n.List {
			assertNoReservedKeyAnywhere(t, item, key)
		}
	}
}
