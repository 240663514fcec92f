package recipe

import (
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Iterations resolves a for-loop's "over" clause against the recipe's
// bound inputs, returning the literal list of values to iterate.
func (fl *ForLoop) Iterations(bound map[string]*tree.Node) []*tree.Node {
	if fl == nil {
		return nil
	}
	if fl.OverLiteral != nil {
		return fl.OverLiteral
	}
	if v, ok := bound[fl.OverInput]; ok && v.Kind == tree.KindList {
		return v.List
	}
	return nil
}

// ScatterWidth returns the number of concurrent workers for n iterations:
// 0/1 (absent) is serial, -1 means all, N>0 caps fan-out at N.
func (fl *ForLoop) ScatterWidth(n int) int {
	if fl == nil || fl.Scatter == 0 || fl.Scatter == 1 {
		return 1
	}
	if fl.Scatter < 0 || fl.Scatter > n {
		return n
	}
	return fl.Scatter
}
