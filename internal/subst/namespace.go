// Package subst implements the substitution and formula engine: "{…}"
// string substitution and "=expression" formulas evaluated against a
// stack of named namespaces, per §4.3.
package subst

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// Namespaces is the full set of named scopes visible during evaluation of
// one step's parameters (§4.3): recipe, root, current, previous,
// steps.<label> (wildcard-aware), info, config, and self (image-build
// time only).
type Namespaces struct {
	Recipe   *tree.Node
	Root     *tree.Node
	Current  *tree.Node
	Previous *tree.Node
	// Steps maps step label to that step's bound params+outputs; a
	// wildcard lookup sorts the matching labels so the alphanumerically
	// largest one is chosen deterministically.
	Steps map[string]*tree.Node
	Info  *tree.Node
	Config *tree.Node
	Self   *tree.Node
}

// NewNamespaces returns an empty set of namespaces with Steps initialized.
func NewNamespaces() *Namespaces {
	return &Namespaces{Steps: map[string]*tree.Node{}}
}

// Lookup resolves a dotted path whose first segment names a namespace
// ("current.who", "steps.s1.ms", "steps.*.ms", "info.label"). It returns
// (nil, false) when the path cannot be resolved at all (unknown namespace
// or missing segment) -- callers decide whether that is "unset" or an
// error, per §4.3's error policy.
func (ns *Namespaces) Lookup(path string) (*tree.Node, bool) {
	seg, rest := splitFirst(path)
	switch seg {
	case "recipe":
		return lookupIn(ns.Recipe, rest)
	case "root":
		return lookupIn(ns.Root, rest)
	case "current":
		return lookupIn(ns.Current, rest)
	case "previous":
		return lookupIn(ns.Previous, rest)
	case "info":
		return lookupIn(ns.Info, rest)
	case "config":
		return lookupIn(ns.Config, rest)
	case "self":
		return lookupIn(ns.Self, rest)
	case "steps":
		return ns.lookupSteps(rest)
	default:
		return nil, false
	}
}

func (ns *Namespaces) lookupSteps(rest string) (*tree.Node, bool) {
	label, inner := splitFirst(rest)
	if label == "" {
		return nil, false
	}
	if !strings.ContainsAny(label, "*?") {
		node, ok := ns.Steps[label]
		if !ok {
			return nil, false
		}
		return lookupIn(node, inner)
	}
	var matches []string
	for l := range ns.Steps {
		if wildcardMatch(label, l) {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return nil, false
	}
	sort.Strings(matches)
	best := matches[len(matches)-1] // alphanumerically largest label wins
	return lookupIn(ns.Steps[best], inner)
}

func lookupIn(n *tree.Node, path string) (*tree.Node, bool) {
	if path == "" {
		if n == nil {
			return nil, false
		}
		return n, true
	}
	cur := n
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil, false
		}
		name, indices := splitIndices(seg)
		if name != "" {
			cur = cur.Get(name)
		}
		for _, idx := range indices {
			if cur == nil || cur.Kind != tree.KindList || idx < 0 || idx >= len(cur.List) {
				return nil, false
			}
			cur = cur.List[idx]
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// splitIndices splits "name[0][1]" into "name" and the list of indices.
func splitIndices(seg string) (string, []int) {
	br := strings.IndexByte(seg, '[')
	if br < 0 {
		return seg, nil
	}
	name := seg[:br]
	rest := seg[br:]
	var indices []int
	for len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		var idx int
		for _, c := range rest[1:end] {
			if c < '0' || c > '9' {
				idx = -1
				break
			}
			idx = idx*10 + int(c-'0')
		}
		indices = append(indices, idx)
		rest = rest[end+1:]
	}
	return name, indices
}

func splitFirst(path string) (first, rest string) {
	if path == "" {
		return "", ""
	}
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}

// wildcardMatch adapts filepath.Match's glob syntax ('*' and '?') to a
// single path segment (step label).
func wildcardMatch(pattern, label string) bool {
	ok, err := filepath.Match(pattern, label)
	return err == nil && ok
}

// WildcardMatch exposes the same single-segment glob matching for callers
// outside this package (e.g. alias target resolution over step labels).
func WildcardMatch(pattern, label string) bool { return wildcardMatch(pattern, label) }
