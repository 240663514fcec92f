package recipe

import (
	"strings"

	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/subst"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// BuildAliases merges the recipe's dedicated "aliases:" section with
// inline aliases declared on individual input/output schema entries, then
// synthesises an auto-alias ("<label>.<param>") for every step parameter
// not already covered by an explicit alias or an explicit step param
// (§4.5 step 4).
func BuildAliases(r *Recipe, cabs map[string]*cab.Cab) error {
	for name, s := range r.Inputs {
		r.Aliases[name] = append(r.Aliases[name], s.Aliases...)
	}
	for name, s := range r.Outputs {
		r.Aliases[name] = append(r.Aliases[name], s.Aliases...)
	}

	covered := map[string]bool{}
	for _, targets := range r.Aliases {
		for _, t := range targets {
			covered[t] = true
		}
	}

	for _, step := range r.Steps {
		if step.IsSubRecipe {
			continue
		}
		c := cabs[step.Uses]
		if c == nil {
			continue
		}
		for _, pname := range c.InputOrder {
			target := step.Label + "." + pname
			if covered[target] {
				continue
			}
			if _, explicit := step.Params[pname]; explicit {
				continue
			}
			r.Aliases[target] = append(r.Aliases[target], target)
		}
	}

	return validateAliases(r, cabs)
}

func splitStepParam(target string) (label, param string) {
	idx := strings.IndexByte(target, '.')
	if idx < 0 {
		return target, ""
	}
	return target[:idx], target[idx+1:]
}

// MatchesAliasTarget implements §8's two alias target forms: a bare label
// (optionally a glob) matches against step.Label, while the "(cabname)"
// boundary form matches every step whose cab resolves to cabname
// regardless of its label.
func MatchesAliasTarget(label string, step *Step) bool {
	if len(label) >= 2 && label[0] == '(' && label[len(label)-1] == ')' {
		return step.Uses == label[1:len(label)-1]
	}
	return subst.WildcardMatch(label, step.Label)
}

// validateAliases checks invariants 1 and 2 of §3: every target resolves
// to a real step parameter with a compatible schema, and output aliases
// have exactly one target.
func validateAliases(r *Recipe, cabs map[string]*cab.Cab) error {
	for aliasName, targets := range r.Aliases {
		if len(targets) == 0 {
			continue
		}
		isOutput := r.Outputs[aliasName] != nil
		if isOutput && len(targets) != 1 {
			return &UnresolvedAlias{Alias: aliasName, Msg: "an output alias must have exactly one target"}
		}
		var ref *schema.Schema
		for _, t := range targets {
			label, param := splitStepParam(t)
			matched := false
			for _, step := range r.Steps {
				if !MatchesAliasTarget(label, step) {
					continue
				}
				c := cabs[step.Uses]
				if c == nil {
					continue
				}
				var s *schema.Schema
				if isOutput {
					s = c.Outputs[param]
				} else {
					s = c.Inputs[param]
				}
				if s == nil {
					continue
				}
				matched = true
				if ref == nil {
					ref = s
				} else if ref.DType.String() != s.DType.String() {
					return &UnresolvedAlias{Alias: aliasName, Msg: "target " + t + " has an incompatible schema"}
				}
			}
			if !matched {
				return &UnresolvedAlias{Alias: aliasName, Msg: "target " + t + " does not resolve to any step parameter"}
			}
		}
	}
	return nil
}

// PropagateUp implements prevalidation step 5: for each recipe input
// without a bound value, search its alias targets for a default or
// implicit template and adopt the first one found.
func PropagateUp(r *Recipe, bound map[string]*tree.Node, cabs map[string]*cab.Cab) {
names:
	for name := range r.Inputs {
		if _, ok := bound[name]; ok {
			continue
		}
		for _, target := range r.Aliases[name] {
			label, param := splitStepParam(target)
			for _, step := range r.Steps {
				if !MatchesAliasTarget(label, step) {
					continue
				}
				c := cabs[step.Uses]
				if c == nil {
					continue
				}
				s := c.Inputs[param]
				if s == nil {
					continue
				}
				if s.HasDefault {
					bound[name] = s.Default
					continue names
				}
				if s.Implicit != "" {
					bound[name] = tree.NewString(s.Implicit)
					continue names
				}
			}
		}
	}
}

// PropagateDown implements prevalidation step 6: for each alias with a
// recipe-level value, propagate that value into each target step's bound
// params map.
func PropagateDown(r *Recipe, recipeBound map[string]*tree.Node, stepParams map[string]map[string]*tree.Node) {
	for aliasName, targets := range r.Aliases {
		val, ok := recipeBound[aliasName]
		if !ok {
			continue
		}
		for _, target := range targets {
			label, param := splitStepParam(target)
			for _, step := range r.Steps {
				if !MatchesAliasTarget(label, step) {
					continue
				}
				if stepParams[step.Label] == nil {
					stepParams[step.Label] = map[string]*tree.Node{}
				}
				stepParams[step.Label][param] = val
			}
		}
	}
}
