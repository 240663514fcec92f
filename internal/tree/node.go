// Package tree implements the configuration tree: a tagged-variant node
// type, deep-merge, and document loading (_include/_include_post/_use/_scrub
// resolution) as described in the loader/merger component of the recipe
// kernel.
package tree

import "fmt"

// Kind discriminates the shape held by a Node.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Node is a single value in the configuration tree. Exactly one of the
// scalar/List/Map fields is meaningful, selected by Kind.
type Node struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	String string

	List []*Node
	// Map preserves insertion order via Keys; Items is keyed lookup.
	Keys  []string
	Items map[string]*Node

	// Line is the 1-based source line, kept for error messages. Zero if
	// the node was constructed programmatically.
	Line int
}

// Null returns a new null node.
func Null() *Node { return &Node{Kind: KindNull} }

// NewString returns a new string node.
func NewString(s string) *Node { return &Node{Kind: KindString, String: s} }

// NewInt returns a new integer node.
func NewInt(i int64) *Node { return &Node{Kind: KindInt, Int: i} }

// NewFloat returns a new floating point node.
func NewFloat(f float64) *Node { return &Node{Kind: KindFloat, Float: f} }

// NewBool returns a new boolean node.
func NewBool(b bool) *Node { return &Node{Kind: KindBool, Bool: b} }

// NewList returns a new list node.
func NewList(items ...*Node) *Node { return &Node{Kind: KindList, List: items} }

// NewMap returns a new, empty map node.
func NewMap() *Node {
	return &Node{Kind: KindMap, Items: map[string]*Node{}}
}

// IsNull reports whether n is nil or an explicit null node.
func (n *Node) IsNull() bool { return n == nil || n.Kind == KindNull }

// Get returns the immediate child named key, or nil if it is missing or
// the receiver is not a map. Path walks dotted paths.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != KindMap {
		return nil
	}
	return n.Items[key]
}

// Set inserts or overwrites the immediate child named key. Panics if n is
// not a map node.
func (n *Node) Set(key string, v *Node) {
	if n.Kind != KindMap {
		panic(fmt.Sprintf("tree: Set on non-map node (%s)", n.Kind))
	}
	if n.Items == nil {
		n.Items = map[string]*Node{}
	}
	if _, exists := n.Items[key]; !exists {
		n.Keys = append(n.Keys, key)
	}
	n.Items[key] = v
}

// Delete removes the immediate child named key, if present.
func (n *Node) Delete(key string) {
	if n == nil || n.Kind != KindMap {
		return
	}
	if _, ok := n.Items[key]; !ok {
		return
	}
	delete(n.Items, key)
	for i, k := range n.Keys {
		if k == key {
			n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
			break
		}
	}
}

// Path walks a dotted path ("a.b.c") through nested maps, returning nil if
// any segment is absent or not addressable.
func (n *Node) Path(dotted string) *Node {
	cur := n
	for _, seg := range splitDotted(dotted) {
		if cur == nil {
			return nil
		}
		cur = cur.Get(seg)
	}
	return cur
}

func splitDotted(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// Clone performs a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Kind: n.Kind, Bool: n.Bool, Int: n.Int, Float: n.Float, String: n.String, Line: n.Line}
	if n.List != nil {
		cp.List = make([]*Node, len(n.List))
		for i, item := range n.List {
			cp.List[i] = item.Clone()
		}
	}
	if n.Kind == KindMap {
		cp.Items = make(map[string]*Node, len(n.Items))
		cp.Keys = append([]string(nil), n.Keys...)
		for _, k := range n.Keys {
			cp.Items[k] = n.Items[k].Clone()
		}
	}
	return cp
}

// AsString returns the node's scalar rendered as a string, for contexts
// (substitution, argv synthesis) that need a textual value regardless of
// the underlying dtype. Lists/maps render as empty strings; callers that
// need JSON should use a dedicated encoder.
func (n *Node) AsString() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindString:
		return n.String
	case KindBool:
		if n.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", n.Int)
	case KindFloat:
		return fmt.Sprintf("%g", n.Float)
	case KindNull:
		return ""
	default:
		return ""
	}
}
