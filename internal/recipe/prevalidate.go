package recipe

import (
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/subst"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Bound is the result of prevalidation (§4.5): the resolved recipe-level
// input values and the per-step parameter maps alias propagation has
// populated, ready for the scheduler to evaluate substitutions against.
type Bound struct {
	Recipe     map[string]*tree.Node
	StepParams map[string]map[string]*tree.Node
	Immune     map[string]bool
}

// Prevalidate runs the seven-step prevalidation pass of §4.5 against a
// recipe, given the caller-supplied explicit parameters and the cab
// definitions its steps reference.
func Prevalidate(r *Recipe, explicit map[string]*tree.Node, cabs map[string]*cab.Cab) (*Bound, error) {
	bound := map[string]*tree.Node{}
	immune := map[string]bool{}
	for k, v := range explicit {
		bound[k] = v
		immune[k] = true
	}

	for k, v := range r.Defaults {
		if _, ok := bound[k]; !ok {
			bound[k] = v
		}
	}

	target := tree.NewMap()
	for k, v := range bound {
		target.Set(k, v)
	}
	ns := subst.NewNamespaces()
	ns.Recipe = target
	ns.Current = target

	if err := ApplyAssign(r.Assign, immune, ns, target); err != nil {
		return nil, err
	}
	if err := ApplyAssignBasedOn(r.AssignBasedOn, immune, ns, target); err != nil {
		return nil, err
	}
	for _, k := range target.Keys {
		bound[k] = target.Items[k]
	}

	if err := BuildAliases(r, cabs); err != nil {
		return nil, err
	}

	PropagateUp(r, bound, cabs)

	stepParams := map[string]map[string]*tree.Node{}
	for _, step := range r.Steps {
		sp := make(map[string]*tree.Node, len(step.Params))
		for k, v := range step.Params {
			sp[k] = v
		}
		stepParams[step.Label] = sp
	}
	PropagateDown(r, bound, stepParams)

	for _, name := range r.InputOrder {
		s := r.Inputs[name]
		if s.IsGroup() {
			continue
		}
		val, ok := bound[name]
		if !ok {
			if s.Required {
				return nil, &PrevalidationError{Recipe: r.Name, Msg: "required input " + name + " has no resolvable value"}
			}
			if s.HasDefault {
				bound[name] = s.Default
			}
			continue
		}
		coerced, err := schema.Typecheck(val, s.DType)
		if err != nil {
			return nil, err
		}
		bound[name] = coerced
	}

	return &Bound{Recipe: bound, StepParams: stepParams, Immune: immune}, nil
}
