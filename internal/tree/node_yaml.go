package tree

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FromYAML walks a decoded *yaml.Node, producing the tagged-variant Node
// tree. This mirrors the hand-walked yaml.Node.Content discrimination the
// teacher's DSLConfig.UnmarshalYAML uses for its own polymorphic step
// shapes, generalized here to build an explicit variant rather than decode
// straight into Go structs.
func FromYAML(n *yaml.Node) (*Node, error) {
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromYAML(n.Content[0])
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	case yaml.SequenceNode:
		list := &Node{Kind: KindList, Line: n.Line}
		for _, c := range n.Content {
			item, err := FromYAML(c)
			if err != nil {
				return nil, err
			}
			list.List = append(list.List, item)
		}
		return list, nil
	case yaml.MappingNode:
		m := NewMap()
		m.Line = n.Line
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("tree: non-scalar mapping key at line %d", keyNode.Line)
			}
			val, err := FromYAML(valNode)
			if err != nil {
				return nil, err
			}
			m.Set(keyNode.Value, val)
		}
		return m, nil
	case yaml.AliasNode:
		return FromYAML(n.Alias)
	default:
		return Null(), nil
	}
}

func scalarFromYAML(n *yaml.Node) (*Node, error) {
	switch n.Tag {
	case "!!null":
		return &Node{Kind: KindNull, Line: n.Line}, nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, fmt.Errorf("tree: bad bool %q at line %d: %w", n.Value, n.Line, err)
		}
		return &Node{Kind: KindBool, Bool: b, Line: n.Line}, nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("tree: bad int %q at line %d: %w", n.Value, n.Line, err)
		}
		return &Node{Kind: KindInt, Int: i, Line: n.Line}, nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("tree: bad float %q at line %d: %w", n.Value, n.Line, err)
		}
		return &Node{Kind: KindFloat, Float: f, Line: n.Line}, nil
	default:
		return &Node{Kind: KindString, String: n.Value, Line: n.Line}, nil
	}
}

// ParseYAML parses raw YAML bytes into a Node tree.
func ParseYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tree: parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewMap(), nil
	}
	return FromYAML(&doc)
}

// ToYAML converts a Node back into plain Go values (map[string]interface{},
// []interface{}, scalars) suitable for yaml.Marshal, used by the
// documentation-dump external collaborator.
func (n *Node) ToYAML() interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindNull:
		return nil
	case KindBool:
		return n.Bool
	case KindInt:
		return n.Int
	case KindFloat:
		return n.Float
	case KindString:
		return n.String
	case KindList:
		out := make([]interface{}, len(n.List))
		for i, item := range n.List {
			out[i] = item.ToYAML()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(n.Items))
		for _, k := range n.Keys {
			out[k] = n.Items[k].ToYAML()
		}
		return out
	default:
		return nil
	}
}
