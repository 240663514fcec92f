package subst

import (
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

func (u unaryExpr) Eval(ctx *EvalContext) (Value, error) {
	v, err := evalRequired(ctx, u.x)
	if err != nil {
		return Value{}, err
	}
	switch u.op {
	case "-":
		if v.Node.Kind == tree.KindFloat {
			return floatVal(-v.Node.Float), nil
		}
		return intVal(-v.Node.Int), nil
	case "not", "!":
		return boolVal(!truthy(v.Node)), nil
	case "~":
		return intVal(^v.Node.Int), nil
	}
	return Value{}, &ParseError{Msg: "unknown unary operator " + u.op}
}

func (b binaryExpr) Eval(ctx *EvalContext) (Value, error) {
	switch b.op {
	case "and", "&&":
		lv, err := evalRequired(ctx, b.l)
		if err != nil {
			return Value{}, err
		}
		if !truthy(lv.Node) {
			return lv, nil
		}
		return evalRequired(ctx, b.r)
	case "or", "||":
		lv, err := evalRequired(ctx, b.l)
		if err != nil {
			return Value{}, err
		}
		if truthy(lv.Node) {
			return lv, nil
		}
		return evalRequired(ctx, b.r)
	}

	lv, err := evalRequired(ctx, b.l)
	if err != nil {
		return Value{}, err
	}
	rv, err := evalRequired(ctx, b.r)
	if err != nil {
		return Value{}, err
	}

	switch b.op {
	case "==":
		return boolVal(equalNodes(lv.Node, rv.Node)), nil
	case "!=":
		return boolVal(!equalNodes(lv.Node, rv.Node)), nil
	case "<", "<=", ">", ">=":
		return compareOp(b.op, lv.Node, rv.Node)
	case "in":
		return boolVal(memberOf(lv.Node, rv.Node)), nil
	case "+":
		return addOp(lv.Node, rv.Node)
	case "-", "*", "/", "%":
		return arithOp(b.op, lv.Node, rv.Node)
	case "&", "|", "^", "<<", ">>":
		return bitwiseOp(b.op, lv.Node, rv.Node)
	}
	return Value{}, &ParseError{Msg: "unknown binary operator " + b.op}
}

func truthy(n *tree.Node) bool {
	if n == nil {
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
		return len(n.Items) > 0
	default:
		return false
	}
}

func equalNodes(a, b *tree.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if isNumeric(a) && isNumeric(b) {
		return numeric(a) == numeric(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case tree.KindString:
		return a.String == b.String
	case tree.KindBool:
		return a.Bool == b.Bool
	case tree.KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !equalNodes(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	default:
		return a.AsString() == b.AsString()
	}
}

func isNumeric(n *tree.Node) bool { return n.Kind == tree.KindInt || n.Kind == tree.KindFloat }

func numeric(n *tree.Node) float64 {
	if n.Kind == tree.KindInt {
		return float64(n.Int)
	}
	return n.Float
}

func compareOp(op string, a, b *tree.Node) (Value, error) {
	var cmp int
	if isNumeric(a) && isNumeric(b) {
		af, bf := numeric(a), numeric(b)
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(a.AsString(), b.AsString())
	}
	switch op {
	case "<":
		return boolVal(cmp < 0), nil
	case "<=":
		return boolVal(cmp <= 0), nil
	case ">":
		return boolVal(cmp > 0), nil
	case ">=":
		return boolVal(cmp >= 0), nil
	}
	return Value{}, &ParseError{Msg: "unknown comparison " + op}
}

func memberOf(needle, haystack *tree.Node) bool {
	if haystack == nil {
		return false
	}
	switch haystack.Kind {
	case tree.KindList:
		for _, item := range haystack.List {
			if equalNodes(needle, item) {
				return true
			}
		}
		return false
	case tree.KindString:
		return strings.Contains(haystack.String, needle.AsString())
	default:
		return false
	}
}

func addOp(a, b *tree.Node) (Value, error) {
	if a.Kind == tree.KindString || b.Kind == tree.KindString {
		return strVal(a.AsString() + b.AsString()), nil
	}
	if a.Kind == tree.KindList && b.Kind == tree.KindList {
		return Value{Node: tree.NewList(append(append([]*tree.Node{}, a.List...), b.List...)...)}, nil
	}
	return arithOp("+", a, b)
}

func arithOp(op string, a, b *tree.Node) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, &BadArgumentType{Func: op, Msg: "arithmetic requires numeric operands"}
	}
	if a.Kind == tree.KindInt && b.Kind == tree.KindInt {
		x, y := a.Int, b.Int
		switch op {
		case "+":
			return intVal(x + y), nil
		case "-":
			return intVal(x - y), nil
		case "*":
			return intVal(x * y), nil
		case "/":
			if y == 0 {
				return Value{}, &BadArgumentType{Func: "/", Msg: "division by zero"}
			}
			return intVal(x / y), nil
		case "%":
			if y == 0 {
				return Value{}, &BadArgumentType{Func: "%", Msg: "modulo by zero"}
			}
			return intVal(x % y), nil
		}
	}
	x, y := numeric(a), numeric(b)
	switch op {
	case "+":
		return floatVal(x + y), nil
	case "-":
		return floatVal(x - y), nil
	case "*":
		return floatVal(x * y), nil
	case "/":
		if y == 0 {
			return Value{}, &BadArgumentType{Func: "/", Msg: "division by zero"}
		}
		return floatVal(x / y), nil
	case "%":
		return Value{}, &BadArgumentType{Func: "%", Msg: "modulo requires integer operands"}
	}
	return Value{}, &ParseError{Msg: "unknown arithmetic operator " + op}
}

func bitwiseOp(op string, a, b *tree.Node) (Value, error) {
	if a.Kind != tree.KindInt || b.Kind != tree.KindInt {
		return Value{}, &BadArgumentType{Func: op, Msg: "bitwise/shift requires integer operands"}
	}
	switch op {
	case "&":
		return intVal(a.Int & b.Int), nil
	case "|":
		return intVal(a.Int | b.Int), nil
	case "^":
		return intVal(a.Int ^ b.Int), nil
	case "<<":
		return intVal(a.Int << uint(b.Int)), nil
	case ">>":
		return intVal(a.Int >> uint(b.Int)), nil
	}
	return Value{}, &ParseError{Msg: "unknown bitwise operator " + op}
}
