package cab

import (
	"regexp"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// WranglerRule is one regex → ordered action list entry. Rules are tried
// independently, in declaration order, against every output line.
type WranglerRule struct {
	Pattern *regexp.Regexp
	Actions []Action
}

// Management holds a cab's environment, wrangler pipeline, and cleanup
// patterns (§4.4).
type Management struct {
	Environment map[string]string
	Wranglers   []WranglerRule
	Cleanup     []string
}

// ParseManagement reads a "management:" mapping node.
func ParseManagement(cabName string, n *tree.Node) (*Management, error) {
	m := &Management{Environment: map[string]string{}}
	if n == nil || n.Kind != tree.KindMap {
		return m, nil
	}
	if v := n.Get("environment"); v != nil && v.Kind == tree.KindMap {
		for _, k := range v.Keys {
			m.Environment[k] = v.Items[k].AsString()
		}
	}
	if v := n.Get("wranglers"); v != nil && v.Kind == tree.KindMap {
		for _, pattern := range v.Keys {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, &DefinitionError{Cab: cabName, Msg: "bad wrangler pattern " + pattern + ": " + err.Error()}
			}
			actionsNode := v.Items[pattern]
			var actions []Action
			switch actionsNode.Kind {
			case tree.KindString:
				a, err := ParseAction(actionsNode.String)
				if err != nil {
					return nil, &DefinitionError{Cab: cabName, Msg: err.Error()}
				}
				actions = append(actions, a)
			case tree.KindList:
				for _, item := range actionsNode.List {
					a, err := ParseAction(item.AsString())
					if err != nil {
						return nil, &DefinitionError{Cab: cabName, Msg: err.Error()}
					}
					actions = append(actions, a)
				}
			default:
				return nil, &DefinitionError{Cab: cabName, Msg: "wrangler actions must be a string or list"}
			}
			m.Wranglers = append(m.Wranglers, WranglerRule{Pattern: re, Actions: actions})
		}
	}
	if v := n.Get("cleanup"); v != nil && v.Kind == tree.KindList {
		for _, item := range v.List {
			m.Cleanup = append(m.Cleanup, item.AsString())
		}
	}
	return m, nil
}
