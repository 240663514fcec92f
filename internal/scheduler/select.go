package scheduler

import (
	"path/filepath"

	"github.com/stepwise-run/stepwise/internal/recipe"
	"github.com/stepwise-run/stepwise/internal/runtime"
	"github.com/stepwise-run/stepwise/internal/subst"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Selection holds the command-line step-selection surface of §6: an
// explicit set of step labels (forced on, ignoring skip/never), and tag
// include/exclude lists. An empty Selection runs every step subject only
// to its own skip/tags/skip_if_outputs declarations.
type Selection struct {
	Steps    []string // explicit labels or label globs; forces the matching steps on
	Tags     []string // --tags: run only steps carrying one of these
	SkipTags []string // --skip-tags: never run steps carrying one of these
}

func (sel Selection) explicit(label string) bool {
	for _, s := range sel.Steps {
		if matchesRange(s, label) {
			return true
		}
	}
	return false
}

// matchesRange reports whether label equals pattern or matches it as a
// glob. A "start:end" range token is not expanded into the labels between
// start and end; it matches only a label spelled exactly that way.
func matchesRange(pattern, label string) bool {
	if ok, err := filepath.Match(pattern, label); err == nil && ok {
		return true
	}
	return pattern == label
}

// hasTag reports whether step carries tag.
func hasTag(step *recipe.Step, tag string) bool {
	for _, t := range step.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// decide implements §4.6 step 1: whether to run a step at all.
func decide(step *recipe.Step, sel Selection, ns *subst.Namespaces, bound map[string]*tree.Node, outputPaths []string, inputPaths []string) (run bool, reason string, err error) {
	forced := sel.explicit(step.Label)

	if !forced {
		if hasTag(step, "never") {
			return false, "tagged never", nil
		}
		for _, t := range sel.SkipTags {
			if hasTag(step, t) {
				return false, "matched --skip-tags", nil
			}
		}
		if len(sel.Tags) > 0 && !hasTag(step, "always") {
			matched := false
			for _, t := range sel.Tags {
				if hasTag(step, t) {
					matched = true
					break
				}
			}
			if !matched {
				return false, "did not match --tags", nil
			}
		}
	}

	if len(sel.Steps) > 0 && !forced {
		return false, "not in explicit step selection", nil
	}

	if !forced && step.Skip != nil {
		truthy, err := evalSkip(step.Skip, ns)
		if err != nil {
			return false, "", err
		}
		if truthy {
			return false, "skip", nil
		}
	}

	if !forced && step.SkipIfOutputs != "" && len(outputPaths) > 0 {
		switch step.SkipIfOutputs {
		case "exist":
			if runtime.Exists(outputPaths) {
				return false, "outputs already exist", nil
			}
		case "fresh":
			fresh, ferr := runtime.IsFresh(outputPaths, inputPaths)
			if ferr != nil {
				return false, "", ferr
			}
			if fresh {
				return false, "outputs are fresh", nil
			}
		}
	}

	return true, "", nil
}

// evalSkip resolves step.Skip to a boolean: a literal bool node is used
// directly; a string is evaluated as a substitution/formula and judged
// truthy the way §4.6 describes (non-zero / non-empty string).
func evalSkip(n *tree.Node, ns *subst.Namespaces) (bool, error) {
	if n.Kind == tree.KindBool {
		return n.Bool, nil
	}
	if n.Kind != tree.KindString {
		return false, nil
	}
	result, _, err := subst.EvalString(n.String, ns)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

func truthy(n *tree.Node) bool {
	if n == nil || n.Kind == tree.KindNull {
		return false
	}
	switch n.Kind {
	case tree.KindBool:
		return n.Bool
	case tree.KindInt:
		return n.Int != 0
	case tree.KindFloat:
		return n.Float != 0
	case tree.KindString:
		return n.String != ""
	case tree.KindList:
		return len(n.List) > 0
	case tree.KindMap:
		return len(n.Keys) > 0
	default:
		return false
	}
}
