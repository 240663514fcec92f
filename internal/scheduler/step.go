package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/recipe"
	"github.com/stepwise-run/stepwise/internal/runtime"
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/subst"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// runStep carries one step through the full §4.6 pipeline: selection,
// assign re-evaluation, alias propagation, substitution, validation,
// filesystem preparation, dispatch, and result bookkeeping.
func (s *Scheduler) runStep(
	ctx context.Context,
	r *recipe.Recipe,
	step *recipe.Step,
	bound *recipe.Bound,
	recipeNode *tree.Node,
	ns *subst.Namespaces,
	stepParams map[string]*tree.Node,
	immune map[string]bool,
	sel Selection,
	backendPref string,
	fq string,
) (*StepRecord, error) {
	if err := recipe.ApplyAssign(r.Assign, immune, ns, recipeNode); err != nil {
		return nil, err
	}
	if err := recipe.ApplyAssignBasedOn(r.AssignBasedOn, immune, ns, recipeNode); err != nil {
		return nil, err
	}

	stepTarget := tree.NewMap()
	for k, v := range stepParams {
		stepTarget.Set(k, v)
	}
	savedCurrent := ns.Current
	ns.Current = stepTarget
	stepImmune := map[string]bool{}
	for k := range step.Params {
		stepImmune[k] = true
	}
	if err := recipe.ApplyAssign(step.Assign, stepImmune, ns, stepTarget); err != nil {
		ns.Current = savedCurrent
		return nil, err
	}
	if err := recipe.ApplyAssignBasedOn(step.AssignBasedOn, stepImmune, ns, stepTarget); err != nil {
		ns.Current = savedCurrent
		return nil, err
	}
	for _, k := range stepTarget.Keys {
		stepParams[k] = stepTarget.Items[k]
	}
	ns.Current = savedCurrent

	var c *cab.Cab
	var subRecipe *recipe.Recipe
	if step.IsSubRecipe {
		var err error
		subRecipe, err = s.resolveSubRecipe(step)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		c, err = s.resolveCab(step)
		if err != nil {
			return nil, err
		}
	}

	var outputPaths, inputPaths []string
	if c != nil {
		inputPaths, outputPaths = filePaths(c, stepParams)
	}

	run, _, err := decide(step, sel, ns, bound.Recipe, outputPaths, inputPaths)
	if err != nil {
		return nil, err
	}

	rec := &StepRecord{FQName: fq, Label: step.Label}

	if !run {
		combined := tree.NewMap()
		for k, v := range stepParams {
			combined.Set(k, v)
		}
		if c != nil {
			applyDefaultsAndImplicits(c.Inputs, c.InputOrder, combined, ns)
			applyDefaultsAndImplicits(c.Outputs, c.OutputOrder, combined, ns)
		}
		ns.Steps[step.Label] = combined
		ns.Previous = combined
		rec.State = StateSkipped
		rec.Params = stepParams
		return rec, nil
	}

	rec.State = StateRunning

	if subRecipe != nil {
		explicitIn := map[string]*tree.Node{}
		for k, v := range stepParams {
			if v != nil && v.Kind == tree.KindString {
				resolved, _, err := subst.EvalString(v.String, namespaceWithCurrent(ns, stepParams))
				if err != nil {
					rec.State = StateFailed
					rec.Err = err
					return rec, err
				}
				v = resolved
			}
			explicitIn[k] = v
		}
		outcome, err := s.RunRecipe(ctx, subRecipe, explicitIn, Selection{}, backendPref, fq)
		if err != nil {
			rec.State = StateFailed
			rec.Err = err
			return rec, err
		}
		combined := tree.NewMap()
		for k, v := range stepParams {
			combined.Set(k, v)
		}
		for k, v := range outcome.Outputs {
			combined.Set(k, v)
		}
		ns.Steps[step.Label] = combined
		ns.Previous = combined
		rec.State = StateSucceeded
		rec.Params = stepParams
		return rec, nil
	}

	implicit := map[string]bool{}
	finalParams := map[string]*tree.Node{}
	evalNS := namespaceWithCurrent(ns, stepParams)
	for _, name := range c.InputOrder {
		sch := c.Inputs[name]
		if sch.IsGroup() {
			continue
		}
		val, ok := stepParams[name]
		if !ok {
			if sch.Implicit != "" {
				resolved, _, err := subst.EvalString(sch.Implicit, evalNS)
				if err != nil {
					rec.State = StateFailed
					rec.Err = err
					return rec, err
				}
				val = resolved
				implicit[name] = true
			} else if sch.HasDefault {
				val = sch.Default
			} else if sch.Required {
				rec.State = StateFailed
				err := &recipe.PrevalidationError{Recipe: fq, Msg: "required cab input " + name + " has no value"}
				rec.Err = err
				return rec, err
			} else {
				continue
			}
		} else if val != nil && val.Kind == tree.KindString {
			resolved, _, err := subst.EvalString(val.String, evalNS)
			if err != nil {
				rec.State = StateFailed
				rec.Err = err
				return rec, err
			}
			val = resolved
		}
		coerced, err := schema.Typecheck(val, sch.DType)
		if err != nil {
			rec.State = StateFailed
			rec.Err = err
			return rec, err
		}
		finalParams[name] = coerced
		if sch.Mkdir && sch.IsFileLike() {
			os.MkdirAll(filepath.Dir(coerced.AsString()), 0755)
		}
		if sch.RemoveIfExists && sch.IsFileLike() {
			os.RemoveAll(coerced.AsString())
		}
	}
	for _, name := range c.OutputOrder {
		sch := c.Outputs[name]
		if sch.IsGroup() || !sch.IsFileLike() {
			continue
		}
		val, ok := stepParams[name]
		if !ok {
			continue
		}
		if val.Kind == tree.KindString {
			resolved, _, _ := subst.EvalString(val.String, evalNS)
			val = resolved
		}
		finalParams[name] = val
		if sch.Mkdir {
			os.MkdirAll(filepath.Dir(val.AsString()), 0755)
		}
		if sch.RemoveIfExists {
			os.RemoveAll(val.AsString())
		}
	}

	pref := backend.Preference{Opts: backendPref, Recipe: r.Backend, Step: step.Backend}
	b, err := s.Dispatcher.Resolve(pref)
	if err != nil {
		rec.State = StateFailed
		rec.Err = err
		return rec, err
	}

	plan, err := runtime.BuildPlan(c, finalParams, implicit, s.Workdir, s.ProcessEnv)
	if err != nil {
		rec.State = StateFailed
		rec.Err = err
		return rec, err
	}

	result, err := runtime.Run(ctx, b, plan, c, fq, step.Timeout, s.Sink)
	if err != nil {
		rec.State = StateFailed
		rec.Err = err
		return rec, err
	}

	combined := tree.NewMap()
	for k, v := range finalParams {
		combined.Set(k, v)
	}
	for _, name := range c.OutputOrder {
		sch := c.Outputs[name]
		if sch.IsGroup() {
			continue
		}
		if v, ok := result.Outputs.Get(name); ok {
			coerced, terr := schema.Typecheck(v, sch.DType)
			if terr != nil {
				rec.State = StateFailed
				rec.Err = terr
				return rec, terr
			}
			combined.Set(name, coerced)
		}
	}

	ns.Steps[step.Label] = combined
	ns.Previous = combined
	rec.State = StateSucceeded
	rec.Params = finalParams

	for aliasName, targets := range r.Aliases {
		for _, target := range targets {
			label, param := splitTarget(target)
			if !recipe.MatchesAliasTarget(label, step) {
				continue
			}
			if v := combined.Get(param); v != nil {
				recipeNode.Set(aliasName, v)
			}
		}
	}

	return rec, nil
}

// namespaceWithCurrent returns a shallow copy of ns with Current pointed
// at a fresh node built from params, so substitutions in one step's
// params can reference sibling params via "current.*".
func namespaceWithCurrent(ns *subst.Namespaces, params map[string]*tree.Node) *subst.Namespaces {
	cur := tree.NewMap()
	for k, v := range params {
		cur.Set(k, v)
	}
	cp := *ns
	cp.Current = cur
	return &cp
}

func applyDefaultsAndImplicits(schemas map[string]*schema.Schema, order []string, combined *tree.Node, ns *subst.Namespaces) {
	for _, name := range order {
		sch := schemas[name]
		if sch.IsGroup() || combined.Get(name) != nil {
			continue
		}
		if sch.HasDefault {
			combined.Set(name, sch.Default)
		} else if sch.Implicit != "" {
			resolved, _, err := subst.EvalString(sch.Implicit, ns)
			if err == nil {
				combined.Set(name, resolved)
			}
		}
	}
}

func filePaths(c *cab.Cab, params map[string]*tree.Node) (inputs, outputs []string) {
	for _, name := range c.InputOrder {
		sch := c.Inputs[name]
		if sch.IsGroup() || !sch.IsFileLike() {
			continue
		}
		if v, ok := params[name]; ok {
			inputs = append(inputs, v.AsString())
		}
	}
	for _, name := range c.OutputOrder {
		sch := c.Outputs[name]
		if sch.IsGroup() || !sch.IsFileLike() {
			continue
		}
		if v, ok := params[name]; ok {
			outputs = append(outputs, v.AsString())
		}
	}
	return inputs, outputs
}

func (s *Scheduler) resolveCab(step *recipe.Step) (*cab.Cab, error) {
	if step.InlineDef != nil {
		return cab.Parse(step.Label, step.InlineDef)
	}
	c, ok := s.Cabs[step.Uses]
	if !ok {
		return nil, &recipe.PrevalidationError{Recipe: step.Label, Msg: "unknown cab " + step.Uses}
	}
	return c, nil
}

func (s *Scheduler) resolveSubRecipe(step *recipe.Step) (*recipe.Recipe, error) {
	if step.InlineDef != nil {
		return recipe.Parse(step.Label, step.InlineDef)
	}
	r, ok := s.Recipes[step.Uses]
	if !ok {
		return nil, &recipe.PrevalidationError{Recipe: step.Label, Msg: "unknown recipe " + step.Uses}
	}
	return r, nil
}
