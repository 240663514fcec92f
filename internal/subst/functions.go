package subst

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// StandardFunctions returns the built-in formula function table (§4.3):
// IF, IFSET, GLOB, MIN, MAX, LIST, RANGE, EXISTS, DIRNAME, BASENAME,
// EXTENSION, STRIPEXT.
func StandardFunctions() map[string]Func {
	return map[string]Func{
		"IF":        fnIf,
		"IFSET":     fnIfSet,
		"GLOB":      fnGlob,
		"MIN":       fnMin,
		"MAX":       fnMax,
		"LIST":      fnList,
		"RANGE":     fnRange,
		"EXISTS":    fnExists,
		"DIRNAME":   fnDirname,
		"BASENAME":  fnBasename,
		"EXTENSION": fnExtension,
		"STRIPEXT":  fnStripext,
	}
}

// fnIf implements IF(cond, t, f[, if_unset]): never throws when if_unset is
// supplied and cond is unset.
func fnIf(ctx *EvalContext, args []Expr) (Value, error) {
	if len(args) < 3 || len(args) > 4 {
		return Value{}, &BadArgumentType{Func: "IF", Msg: "expects 3 or 4 arguments"}
	}
	cond, err := args[0].Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if cond.Unset {
		if len(args) == 4 {
			return args[3].Eval(ctx)
		}
		return Value{}, &UnsetInExpression{Path: "IF condition"}
	}
	if truthy(cond.Node) {
		return args[1].Eval(ctx)
	}
	return args[2].Eval(ctx)
}

// fnIfSet implements IFSET(lookup[, set[, unset]]): returns set (or lookup
// itself) when lookup resolves, unset (or the UNSET sentinel) otherwise.
func fnIfSet(ctx *EvalContext, args []Expr) (Value, error) {
	if len(args) < 1 || len(args) > 3 {
		return Value{}, &BadArgumentType{Func: "IFSET", Msg: "expects 1 to 3 arguments"}
	}
	v, err := args[0].Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if !v.Unset {
		if len(args) >= 2 {
			return args[1].Eval(ctx)
		}
		return v, nil
	}
	if len(args) == 3 {
		return args[2].Eval(ctx)
	}
	return unsetVal(), nil
}

func fnGlob(ctx *EvalContext, args []Expr) (Value, error) {
	if len(args) != 1 {
		return Value{}, &BadArgumentType{Func: "GLOB", Msg: "expects 1 argument"}
	}
	v, err := evalRequired(ctx, args[0])
	if err != nil {
		return Value{}, err
	}
	if v.Node.Kind != tree.KindString {
		return Value{}, &BadArgumentType{Func: "GLOB", Msg: "pattern must be a string"}
	}
	matches, err := filepath.Glob(v.Node.String)
	if err != nil {
		return Value{}, &BadArgumentType{Func: "GLOB", Msg: err.Error()}
	}
	items := make([]*tree.Node, len(matches))
	for i, m := range matches {
		items[i] = tree.NewString(m)
	}
	return Value{Node: tree.NewList(items...)}, nil
}

func fnMin(ctx *EvalContext, args []Expr) (Value, error) { return minMax(ctx, args, "MIN", true) }
func fnMax(ctx *EvalContext, args []Expr) (Value, error) { return minMax(ctx, args, "MAX", false) }

func minMax(ctx *EvalContext, args []Expr, name string, wantMin bool) (Value, error) {
	vals, err := evalFlatNumeric(ctx, args, name)
	if err != nil {
		return Value{}, err
	}
	if len(vals) == 0 {
		return Value{}, &BadArgumentType{Func: name, Msg: "expects at least one argument"}
	}
	best := vals[0]
	for _, v := range vals[1:] {
		if (wantMin && v.f < best.f) || (!wantMin && v.f > best.f) {
			best = v
		}
	}
	return best.v, nil
}

type numVal struct {
	f float64
	v Value
}

func evalFlatNumeric(ctx *EvalContext, args []Expr, name string) ([]numVal, error) {
	var out []numVal
	for _, a := range args {
		v, err := evalRequired(ctx, a)
		if err != nil {
			return nil, err
		}
		if v.Node.Kind == tree.KindList {
			for _, item := range v.Node.List {
				if !isNumeric(item) {
					return nil, &BadArgumentType{Func: name, Msg: "all elements must be numeric"}
				}
				out = append(out, numVal{f: numeric(item), v: Value{Node: item}})
			}
			continue
		}
		if !isNumeric(v.Node) {
			return nil, &BadArgumentType{Func: name, Msg: "all arguments must be numeric"}
		}
		out = append(out, numVal{f: numeric(v.Node), v: v})
	}
	return out, nil
}

func fnList(ctx *EvalContext, args []Expr) (Value, error) {
	items := make([]*tree.Node, 0, len(args))
	for _, a := range args {
		v, err := evalRequired(ctx, a)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v.Node)
	}
	return Value{Node: tree.NewList(items...)}, nil
}

func fnRange(ctx *EvalContext, args []Expr) (Value, error) {
	ints := make([]int64, 0, len(args))
	for _, a := range args {
		v, err := evalRequired(ctx, a)
		if err != nil {
			return Value{}, err
		}
		if v.Node.Kind != tree.KindInt {
			return Value{}, &BadArgumentType{Func: "RANGE", Msg: "arguments must be integers"}
		}
		ints = append(ints, v.Node.Int)
	}
	var start, stop, step int64
	switch len(ints) {
	case 1:
		start, stop, step = 0, ints[0], 1
	case 2:
		start, stop, step = ints[0], ints[1], 1
	case 3:
		start, stop, step = ints[0], ints[1], ints[2]
	default:
		return Value{}, &BadArgumentType{Func: "RANGE", Msg: "expects 1 to 3 arguments"}
	}
	if step == 0 {
		return Value{}, &BadArgumentType{Func: "RANGE", Msg: "step must not be zero"}
	}
	var out []*tree.Node
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, tree.NewInt(i))
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, tree.NewInt(i))
		}
	}
	return Value{Node: tree.NewList(out...)}, nil
}

// fnExists implements EXISTS(path): substitutes path and stats it on disk,
// a suspension point per §5 ("evaluating a GLOB or EXISTS that touches the
// filesystem"). An unset argument resolves to false rather than erroring,
// since "does this path exist" is itself a pure-lookup context.
func fnExists(ctx *EvalContext, args []Expr) (Value, error) {
	if len(args) != 1 {
		return Value{}, &BadArgumentType{Func: "EXISTS", Msg: "expects 1 argument"}
	}
	v, err := args[0].Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if v.Unset {
		return boolVal(false), nil
	}
	if v.Node.Kind != tree.KindString {
		return Value{}, &BadArgumentType{Func: "EXISTS", Msg: "path must be a string"}
	}
	path, _, err := Substitute(v.Node.String, ctx.NS)
	if err != nil {
		return Value{}, err
	}
	_, statErr := os.Stat(path)
	return boolVal(statErr == nil), nil
}

func fnDirname(ctx *EvalContext, args []Expr) (Value, error) {
	s, err := oneStringArg(ctx, args, "DIRNAME")
	if err != nil {
		return Value{}, err
	}
	return strVal(filepath.Dir(s)), nil
}

func fnBasename(ctx *EvalContext, args []Expr) (Value, error) {
	s, err := oneStringArg(ctx, args, "BASENAME")
	if err != nil {
		return Value{}, err
	}
	return strVal(filepath.Base(s)), nil
}

func fnExtension(ctx *EvalContext, args []Expr) (Value, error) {
	s, err := oneStringArg(ctx, args, "EXTENSION")
	if err != nil {
		return Value{}, err
	}
	return strVal(strings.TrimPrefix(filepath.Ext(s), ".")), nil
}

func fnStripext(ctx *EvalContext, args []Expr) (Value, error) {
	s, err := oneStringArg(ctx, args, "STRIPEXT")
	if err != nil {
		return Value{}, err
	}
	ext := filepath.Ext(s)
	return strVal(strings.TrimSuffix(s, ext)), nil
}

func oneStringArg(ctx *EvalContext, args []Expr, name string) (string, error) {
	if len(args) != 1 {
		return "", &BadArgumentType{Func: name, Msg: "expects 1 argument"}
	}
	v, err := evalRequired(ctx, args[0])
	if err != nil {
		return "", err
	}
	if v.Node.Kind != tree.KindString {
		return "", &BadArgumentType{Func: name, Msg: fmt.Sprintf("argument must be a string, got %s", v.Node.Kind)}
	}
	return v.Node.String, nil
}
