// Package recipe implements the Recipe Model (§4.5): recipe/step
// definitions, alias construction, assign/assign_based_on, for-loops, and
// the prevalidation pass that runs before any step executes.
package recipe

import (
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// ForLoop is a recipe's optional "for_loop" declaration.
type ForLoop struct {
	Var           string
	OverInput     string     // name of an input holding the list, if Over isn't a literal
	OverLiteral   []*tree.Node
	Scatter       int  // 0/1 = serial, N>0 = up to N concurrent, -1 = all
	DisplayStatus bool
}

// Step is one ordered child of a recipe (§3).
type Step struct {
	Label string

	// Uses names a cab or a sub-recipe; exactly one of Uses/InlineDef is
	// set, selected by IsSubRecipe and whether InlineDef is non-nil.
	Uses       string
	IsSubRecipe bool
	InlineDef  *tree.Node

	Params map[string]*tree.Node

	Tags []string

	Skip           *tree.Node // bool literal, or a substitution/formula string
	SkipIfOutputs  string     // "" | "exist" | "fresh"

	Assign        AssignList
	AssignBasedOn []AssignBasedOnRule

	Backend string
	Info    string

	// Timeout is the per-step timeout in seconds (§5 "Timeouts"); zero
	// means no timeout is enforced.
	Timeout int
}

// Recipe is a named workflow (§3).
type Recipe struct {
	Name string

	Inputs     map[string]*schema.Schema
	InputOrder []string
	Outputs    map[string]*schema.Schema
	OutputOrder []string

	Defaults map[string]*tree.Node

	Assign        AssignList
	AssignBasedOn []AssignBasedOnRule

	Aliases map[string][]string

	ForLoop *ForLoop

	Steps []*Step

	Backend string
}

// Parse builds a Recipe from its definition node (already reparented under
// lib.recipes.<name> by tree.Normalize, if it came from a top-level key).
func Parse(name string, n *tree.Node) (*Recipe, error) {
	if n == nil || n.Kind != tree.KindMap {
		return nil, &PrevalidationError{Recipe: name, Msg: "recipe definition must be a mapping"}
	}
	r := &Recipe{Name: name, Aliases: map[string][]string{}}

	inputs, inOrder, err := schema.ParseMap(n.Get("inputs"))
	if err != nil {
		return nil, &PrevalidationError{Recipe: name, Msg: "inputs: " + err.Error()}
	}
	r.Inputs, r.InputOrder = inputs, inOrder

	outputs, outOrder, err := schema.ParseMap(n.Get("outputs"))
	if err != nil {
		return nil, &PrevalidationError{Recipe: name, Msg: "outputs: " + err.Error()}
	}
	r.Outputs, r.OutputOrder = outputs, outOrder

	if v := n.Get("defaults"); v != nil && v.Kind == tree.KindMap {
		r.Defaults = map[string]*tree.Node{}
		for _, k := range v.Keys {
			r.Defaults[k] = v.Items[k]
		}
	}

	r.Assign = parseAssign(n.Get("assign"))
	r.AssignBasedOn, err = parseAssignBasedOn(n.Get("assign_based_on"))
	if err != nil {
		return nil, err
	}

	r.Aliases = parseAliasSection(n.Get("aliases"))

	if v := n.Get("for_loop"); v != nil && v.Kind == tree.KindMap {
		fl := &ForLoop{}
		if vr := v.Get("var"); vr != nil {
			fl.Var = vr.AsString()
		}
		if over := v.Get("over"); over != nil {
			if over.Kind == tree.KindList {
				fl.OverLiteral = over.List
			} else {
				fl.OverInput = over.AsString()
			}
		}
		if sc := v.Get("scatter"); sc != nil {
			fl.Scatter = int(sc.Int)
		}
		if ds := v.Get("display_status"); ds != nil {
			fl.DisplayStatus = ds.Bool
		}
		r.ForLoop = fl
	}

	if v := n.Get("backend"); v != nil {
		r.Backend = v.AsString()
	}

	steps, err := parseSteps(n.Get("steps"))
	if err != nil {
		return nil, &PrevalidationError{Recipe: name, Msg: err.Error()}
	}
	r.Steps = steps

	return r, nil
}

func parseSteps(n *tree.Node) ([]*Step, error) {
	if n == nil {
		return nil, nil
	}
	var out []*Step
	switch n.Kind {
	case tree.KindList:
		for _, item := range n.List {
			if len(item.Keys) != 1 {
				return nil, &PrevalidationError{Msg: "step list entries must have exactly one label key"}
			}
			label := item.Keys[0]
			s, err := parseStep(label, item.Items[label])
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	case tree.KindMap:
		for _, label := range n.Keys {
			s, err := parseStep(label, n.Items[label])
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func parseStep(label string, n *tree.Node) (*Step, error) {
	s := &Step{Label: label, Params: map[string]*tree.Node{}}
	if n == nil {
		return s, nil
	}
	if n.Kind == tree.KindString {
		s.Uses = n.String
		return s, nil
	}
	if n.Kind != tree.KindMap {
		return nil, &PrevalidationError{Recipe: label, Msg: "step must be a mapping or a bare cab name"}
	}
	stepKeys := map[string]bool{
		"cab": true, "recipe": true, "params": true, "tags": true, "skip": true,
		"skip_if_outputs": true, "assign": true, "assign_based_on": true,
		"backend": true, "info": true, "timeout": true,
	}
	if v := n.Get("cab"); v != nil {
		s.Uses = v.AsString()
	} else if v := n.Get("recipe"); v != nil {
		s.Uses = v.AsString()
		s.IsSubRecipe = true
	} else {
		// An inline definition: everything outside the known step-level
		// keys is the inline cab/sub-recipe body.
		inline := tree.NewMap()
		for _, k := range n.Keys {
			if !stepKeys[k] {
				inline.Set(k, n.Items[k])
			}
		}
		if len(inline.Keys) > 0 {
			s.InlineDef = inline
			s.IsSubRecipe = inline.Get("steps") != nil
		}
	}
	if v := n.Get("params"); v != nil && v.Kind == tree.KindMap {
		for _, k := range v.Keys {
			s.Params[k] = v.Items[k]
		}
	}
	if v := n.Get("tags"); v != nil && v.Kind == tree.KindList {
		for _, item := range v.List {
			s.Tags = append(s.Tags, item.AsString())
		}
	}
	if v := n.Get("skip"); v != nil {
		s.Skip = v
	}
	if v := n.Get("skip_if_outputs"); v != nil {
		s.SkipIfOutputs = v.AsString()
	}
	if v := n.Get("assign"); v != nil {
		s.Assign = parseAssign(v)
	}
	abo, err := parseAssignBasedOn(n.Get("assign_based_on"))
	if err != nil {
		return nil, err
	}
	s.AssignBasedOn = abo
	if v := n.Get("backend"); v != nil {
		s.Backend = v.AsString()
	}
	if v := n.Get("info"); v != nil {
		s.Info = v.AsString()
	}
	if v := n.Get("timeout"); v != nil && v.Kind == tree.KindInt {
		s.Timeout = int(v.Int)
	}
	return s, nil
}
