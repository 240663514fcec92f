package recipe

import "fmt"

// UnresolvedAlias reports an alias whose target is missing or whose
// targets carry incompatible schemas (§7, invariant 1 of §3).
type UnresolvedAlias struct {
	Alias string
	Msg   string
}

func (e *UnresolvedAlias) Error() string {
	return fmt.Sprintf("recipe: alias %q: %s", e.Alias, e.Msg)
}

// AssignBasedOnUnmatched reports an assign_based_on value with no matching
// case and no DEFAULT fallback (§7).
type AssignBasedOnUnmatched struct {
	Key   string
	Value string
}

func (e *AssignBasedOnUnmatched) Error() string {
	return fmt.Sprintf("recipe: assign_based_on %q: value %q matches no case and no DEFAULT is declared", e.Key, e.Value)
}

// PrevalidationError reports any other prevalidation or step-setup failure
// (missing required input, malformed recipe or step definition, unknown
// cab or recipe, required cab input with no value).
type PrevalidationError struct {
	Recipe string
	Msg    string
}

func (e *PrevalidationError) Error() string {
	return fmt.Sprintf("recipe: %s: %s", e.Recipe, e.Msg)
}
