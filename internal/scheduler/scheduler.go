package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/logging"
	"github.com/stepwise-run/stepwise/internal/recipe"
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/subst"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Scheduler holds everything a run needs that is shared across every
// recipe/sub-recipe invocation: the parsed cab and sub-recipe registries,
// the backend dispatcher, and the shared log sink.
type Scheduler struct {
	Cabs       map[string]*cab.Cab
	Recipes    map[string]*recipe.Recipe
	Dispatcher *backend.Dispatcher
	Sink       logging.Sink
	ProcessEnv map[string]string
	ConfigEnv  map[string]string
	Workdir    string
	Info       *tree.Node
}

// StepRecord is one executed (or skipped) step's outcome, retained for
// reporting and for alias back-propagation (§3 "Parameter bindings").
type StepRecord struct {
	FQName string
	Label  string
	State  State
	Params map[string]*tree.Node
	Err    error
}

// Outcome is the result of running one recipe: its resolved output
// values and every step record produced across every iteration.
type Outcome struct {
	Outputs map[string]*tree.Node
	Steps   []StepRecord
}

// RunRecipe runs r to completion: prevalidates it, resolves its for_loop
// iterations (scattering them if requested), executes each iteration's
// steps in declaration order, and propagates output aliases upward into
// the recipe's declared outputs (§4.5, §4.6).
func (s *Scheduler) RunRecipe(ctx context.Context, r *recipe.Recipe, explicit map[string]*tree.Node, sel Selection, backendPref string, fqPrefix string) (*Outcome, error) {
	bound, err := recipe.Prevalidate(r, explicit, s.Cabs)
	if err != nil {
		return nil, err
	}

	iterations := []*tree.Node{nil} // a single nil "iteration" for a non-looping recipe
	loopVar := ""
	if r.ForLoop != nil {
		loopVar = r.ForLoop.Var
		iterations = r.ForLoop.Iterations(bound.Recipe)
		if len(iterations) == 0 {
			iterations = []*tree.Node{nil}
		}
	}

	width := 1
	if r.ForLoop != nil {
		width = r.ForLoop.ScatterWidth(len(iterations))
	}

	var progress *iterationProgress
	if r.ForLoop != nil && r.ForLoop.DisplayStatus && len(iterations) > 1 {
		label := r.Name
		if fqPrefix != "" {
			label = fqPrefix + "." + r.Name
		}
		progress = newIterationProgress(label, len(iterations))
		progress.start()
		defer progress.stopAndWait()
	}

	results := make([]*iterationResult, len(iterations))
	if width <= 1 {
		for i, iv := range iterations {
			ir, err := s.runIteration(ctx, r, bound, sel, backendPref, fqPrefix, loopVar, iv)
			if err != nil {
				return nil, err
			}
			results[i] = ir
			if progress != nil {
				progress.advance()
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(width)
		for i, iv := range iterations {
			i, iv := i, iv
			g.Go(func() error {
				ir, err := s.runIteration(gctx, r, bound, sel, backendPref, fqPrefix, loopVar, iv)
				if err != nil {
					return err
				}
				results[i] = ir
				if progress != nil {
					progress.advance()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	outcome := &Outcome{Outputs: map[string]*tree.Node{}}
	for k, v := range bound.Recipe {
		outcome.Outputs[k] = v
	}
	for _, ir := range results {
		outcome.Steps = append(outcome.Steps, ir.steps...)
		for k, v := range ir.recipeOutputs {
			outcome.Outputs[k] = v
		}
	}
	for _, name := range r.OutputOrder {
		outSchema := r.Outputs[name]
		if v, ok := outcome.Outputs[name]; ok {
			if coerced, err := schema.Typecheck(v, outSchema.DType); err == nil {
				outcome.Outputs[name] = coerced
			}
		}
	}

	return outcome, nil
}

type iterationResult struct {
	steps         []StepRecord
	recipeOutputs map[string]*tree.Node
}

// runIteration executes one pass of r.Steps against a fresh per-iteration
// namespace stack: ns.Steps and ns.Previous are iteration-local (§5
// "between scattered iterations there is no order"), while the recipe's
// bound inputs are cloned per iteration so step-level and recipe-level
// `assign` mutations in one iteration never leak into a sibling (§5
// "shared resources").
func (s *Scheduler) runIteration(ctx context.Context, r *recipe.Recipe, bound *recipe.Bound, sel Selection, backendPref string, fqPrefix string, loopVar string, loopValue *tree.Node) (*iterationResult, error) {
	recipeNode := tree.NewMap()
	for k, v := range bound.Recipe {
		recipeNode.Set(k, v)
	}
	if loopVar != "" && loopValue != nil {
		recipeNode.Set(loopVar, loopValue)
	}

	ns := &subst.Namespaces{
		Recipe: recipeNode,
		Root:   recipeNode,
		Steps:  map[string]*tree.Node{},
		Info:   s.Info,
		Config: configNode(s.ConfigEnv),
	}

	ir := &iterationResult{recipeOutputs: map[string]*tree.Node{}}

	stepParams := map[string]map[string]*tree.Node{}
	for label, p := range bound.StepParams {
		cp := map[string]*tree.Node{}
		for k, v := range p {
			cp[k] = v
		}
		stepParams[label] = cp
	}

	for _, step := range r.Steps {
		fq := step.Label
		if fqPrefix != "" {
			fq = fqPrefix + "." + step.Label
		}

		rec, err := s.runStep(ctx, r, step, bound, recipeNode, ns, stepParams[step.Label], bound.Immune, sel, backendPref, fq)
		ir.steps = append(ir.steps, *rec)
		if err != nil {
			return ir, &StepError{FQName: fq, Cause: err}
		}
	}

	for aliasName, targets := range r.Aliases {
		if r.Outputs[aliasName] == nil || len(targets) != 1 {
			continue
		}
		label, param := splitTarget(targets[0])
		combined := ns.Steps[label]
		if combined == nil {
			continue
		}
		if v := combined.Get(param); v != nil {
			ir.recipeOutputs[aliasName] = v
		}
	}

	return ir, nil
}

func splitTarget(target string) (label, param string) {
	for i := 0; i < len(target); i++ {
		if target[i] == '.' {
			return target[:i], target[i+1:]
		}
	}
	return target, ""
}

func configNode(env map[string]string) *tree.Node {
	run := tree.NewMap()
	envNode := tree.NewMap()
	for k, v := range env {
		envNode.Set(k, tree.NewString(v))
	}
	run.Set("env", envNode)
	root := tree.NewMap()
	root.Set("run", run)
	return root
}
