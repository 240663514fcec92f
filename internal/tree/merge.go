package tree

import "fmt"

// MergeConflict reports that two documents defined incompatible structural
// types at the same dotted path (a mapping merged against a scalar or
// list, for instance).
type MergeConflict struct {
	Path string
	Into Kind
	From Kind
}

func (e *MergeConflict) Error() string {
	return fmt.Sprintf("tree: merge conflict at %q: cannot merge %s into %s", e.Path, e.From, e.Into)
}

// Merge deep-merges from into into, following the rule: mapping ∪ mapping
// is key-wise merged; any non-mapping leaf is overwritten by the later
// value. into is mutated and returned. A nil into is treated as an empty
// map when from is itself a map, otherwise from is cloned in directly.
func Merge(into, from *Node) (*Node, error) {
	return mergeAt(into, from, "")
}

func mergeAt(into, from *Node, path string) (*Node, error) {
	if from == nil || from.Kind == KindNull {
		if into == nil {
			return Null(), nil
		}
		return into, nil
	}
	if into == nil || into.Kind == KindNull {
		return from.Clone(), nil
	}
	if into.Kind != KindMap || from.Kind != KindMap {
		if into.Kind != from.Kind {
			// Overwriting a leaf with a different-shaped leaf is allowed
			// (e.g. int default overwritten by a string); only a
			// map-vs-non-map collision is a structural MergeConflict.
			if into.Kind == KindMap || from.Kind == KindMap {
				return nil, &MergeConflict{Path: path, Into: into.Kind, From: from.Kind}
			}
		}
		return from.Clone(), nil
	}

	for _, k := range from.Keys {
		childPath := k
		if path != "" {
			childPath = path + "." + k
		}
		merged, err := mergeAt(into.Items[k], from.Items[k], childPath)
		if err != nil {
			return nil, err
		}
		into.Set(k, merged)
	}
	return into, nil
}
