package subst

import "github.com/stepwise-run/stepwise/internal/tree"

// Value is the result of evaluating a formula sub-expression. Unset
// distinguishes "no value" (the UNSET sentinel, or an unresolved lookup)
// from an actual null/zero value.
type Value struct {
	Node  *tree.Node
	Unset bool
}

func strVal(s string) Value  { return Value{Node: tree.NewString(s)} }
func intVal(i int64) Value   { return Value{Node: tree.NewInt(i)} }
func floatVal(f float64) Value { return Value{Node: tree.NewFloat(f)} }
func boolVal(b bool) Value   { return Value{Node: tree.NewBool(b)} }
func listVal(items ...*tree.Node) Value { return Value{Node: tree.NewList(items...)} }
func unsetVal() Value        { return Value{Unset: true} }

// Expr is a parsed formula expression node.
type Expr interface {
	Eval(ctx *EvalContext) (Value, error)
}

// EvalContext bundles the namespace stack and the function table.
type EvalContext struct {
	NS        *Namespaces
	Functions map[string]Func
}

// Func is a built-in formula function. Args are unevaluated expressions so
// functions like IF can choose not to evaluate a branch, and IFSET/EXISTS
// can inspect "unset"-ness directly.
type Func func(ctx *EvalContext, args []Expr) (Value, error)

type litExpr struct{ v Value }

func (l litExpr) Eval(*EvalContext) (Value, error) { return l.v, nil }

type identExpr struct{ path string }

func (id identExpr) Eval(ctx *EvalContext) (Value, error) {
	switch id.path {
	case "UNSET":
		return unsetVal(), nil
	case "EMPTY":
		return strVal(""), nil
	case "True", "true":
		return boolVal(true), nil
	case "False", "false":
		return boolVal(false), nil
	}
	n, ok := ctx.NS.Lookup(id.path)
	if !ok {
		return unsetVal(), nil
	}
	return Value{Node: n}, nil
}

type listExpr struct{ items []Expr }

func (l listExpr) Eval(ctx *EvalContext) (Value, error) {
	out := make([]*tree.Node, len(l.items))
	for i, item := range l.items {
		v, err := evalRequired(ctx, item)
		if err != nil {
			return Value{}, err
		}
		out[i] = v.Node
	}
	return Value{Node: tree.NewList(out...)}, nil
}

type unaryExpr struct {
	op string
	x  Expr
}

type binaryExpr struct {
	op   string
	l, r Expr
}

type callExpr struct {
	name string
	args []Expr
}

func (c callExpr) Eval(ctx *EvalContext) (Value, error) {
	fn, ok := ctx.Functions[c.name]
	if !ok {
		return Value{}, &ParseError{Msg: "unknown function " + c.name}
	}
	return fn(ctx, c.args)
}

// evalRequired evaluates expr and errors with UnsetInExpression if the
// result is unset -- the "inside arithmetic" error policy of §4.3.
func evalRequired(ctx *EvalContext, e Expr) (Value, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if v.Unset {
		path := ""
		if id, ok := e.(identExpr); ok {
			path = id.path
		}
		return Value{}, &UnsetInExpression{Path: path}
	}
	return v, nil
}
