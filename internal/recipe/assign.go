package recipe

import (
	"github.com/stepwise-run/stepwise/internal/subst"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Assignment is one "key: value" entry of an "assign" section, kept in
// declaration order.
type Assignment struct {
	Key   string
	Value *tree.Node
}

// AssignList is an ordered "assign" section.
type AssignList []Assignment

func parseAssign(n *tree.Node) AssignList {
	if n == nil || n.Kind != tree.KindMap {
		return nil
	}
	out := make(AssignList, 0, len(n.Keys))
	for _, k := range n.Keys {
		out = append(out, Assignment{Key: k, Value: n.Items[k]})
	}
	return out
}

// AssignBasedOnRule is one "assign_based_on" entry: an observed key whose
// value selects a sub-assignment, with DEFAULT as the fallback case.
type AssignBasedOnRule struct {
	Key     string
	Cases   map[string]AssignList
	Default AssignList
}

func parseAssignBasedOn(n *tree.Node) ([]AssignBasedOnRule, error) {
	if n == nil || n.Kind != tree.KindMap {
		return nil, nil
	}
	var out []AssignBasedOnRule
	for _, key := range n.Keys {
		casesNode := n.Items[key]
		if casesNode.Kind != tree.KindMap {
			return nil, &PrevalidationError{Msg: "assign_based_on." + key + " must be a mapping of case -> assignments"}
		}
		rule := AssignBasedOnRule{Key: key, Cases: map[string]AssignList{}}
		for _, caseVal := range casesNode.Keys {
			assignments := parseAssign(casesNode.Items[caseVal])
			if caseVal == "DEFAULT" {
				rule.Default = assignments
			} else {
				rule.Cases[caseVal] = assignments
			}
		}
		out = append(out, rule)
	}
	return out, nil
}

// ApplyAssign evaluates each assignment against ns and writes the result
// into target, skipping any key marked immune (invariant 4 of §3).
func ApplyAssign(list AssignList, immune map[string]bool, ns *subst.Namespaces, target *tree.Node) error {
	for _, a := range list {
		if immune[a.Key] {
			continue
		}
		val, err := evalAssignValue(a.Value, ns)
		if err != nil {
			return err
		}
		target.Set(a.Key, val)
		refreshCurrent(ns, target)
	}
	return nil
}

// ApplyAssignBasedOn looks each rule's observed key up in target and
// applies the matching case's (or DEFAULT's) assignments.
func ApplyAssignBasedOn(rules []AssignBasedOnRule, immune map[string]bool, ns *subst.Namespaces, target *tree.Node) error {
	for _, rule := range rules {
		observed := target.Get(rule.Key)
		key := observed.AsString()
		assignments, ok := rule.Cases[key]
		if !ok {
			if rule.Default == nil {
				return &AssignBasedOnUnmatched{Key: rule.Key, Value: key}
			}
			assignments = rule.Default
		}
		if err := ApplyAssign(assignments, immune, ns, target); err != nil {
			return err
		}
	}
	return nil
}

func evalAssignValue(raw *tree.Node, ns *subst.Namespaces) (*tree.Node, error) {
	if raw == nil {
		return tree.Null(), nil
	}
	if raw.Kind != tree.KindString {
		return raw, nil
	}
	if raw.String == "UNSET" {
		return tree.Null(), nil
	}
	n, _, err := subst.EvalString(raw.String, ns)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// refreshCurrent keeps ns.Current pointed at target so later assignments
// in the same list see earlier ones.
func refreshCurrent(ns *subst.Namespaces, target *tree.Node) {
	ns.Current = target
}
