package schema

import (
	"strconv"
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// Typecheck coerces value against dtype, parsing string representations
// where a unique parse exists ("5" -> integer, "[1,2]" -> list), and
// rejects otherwise with TypeMismatch.
func Typecheck(value *tree.Node, dt *DType) (*tree.Node, error) {
	if dt == nil {
		return value, nil
	}
	if value == nil || value.Kind == tree.KindNull {
		if dt.Kind == TOptional {
			return value, nil
		}
		return value, nil
	}

	switch dt.Kind {
	case TOptional:
		return Typecheck(value, dt.Elem[0])

	case TString, TFile, TDirectory, TMS, TURI:
		return tree.NewString(value.AsString()), nil

	case TInteger:
		switch value.Kind {
		case tree.KindInt:
			return value, nil
		case tree.KindFloat:
			if value.Float == float64(int64(value.Float)) {
				return tree.NewInt(int64(value.Float)), nil
			}
			return nil, mismatch(dt, value)
		case tree.KindString:
			i, err := strconv.ParseInt(strings.TrimSpace(value.String), 10, 64)
			if err != nil {
				return nil, mismatch(dt, value)
			}
			return tree.NewInt(i), nil
		default:
			return nil, mismatch(dt, value)
		}

	case TFloating:
		switch value.Kind {
		case tree.KindFloat:
			return value, nil
		case tree.KindInt:
			return tree.NewFloat(float64(value.Int)), nil
		case tree.KindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(value.String), 64)
			if err != nil {
				return nil, mismatch(dt, value)
			}
			return tree.NewFloat(f), nil
		default:
			return nil, mismatch(dt, value)
		}

	case TBoolean:
		switch value.Kind {
		case tree.KindBool:
			return value, nil
		case tree.KindString:
			b, err := strconv.ParseBool(strings.TrimSpace(value.String))
			if err != nil {
				return nil, mismatch(dt, value)
			}
			return tree.NewBool(b), nil
		case tree.KindInt:
			return tree.NewBool(value.Int != 0), nil
		default:
			return nil, mismatch(dt, value)
		}

	case TList:
		items, err := asListLiteral(value)
		if err != nil {
			return nil, mismatch(dt, value)
		}
		out := make([]*tree.Node, len(items))
		for i, item := range items {
			coerced, err := Typecheck(item, dt.Elem[0])
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return tree.NewList(out...), nil

	case TTuple:
		items, err := asListLiteral(value)
		if err != nil {
			return nil, mismatch(dt, value)
		}
		if len(items) != len(dt.Elem) {
			return nil, mismatch(dt, value)
		}
		out := make([]*tree.Node, len(items))
		for i, item := range items {
			coerced, err := Typecheck(item, dt.Elem[i])
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return tree.NewList(out...), nil

	case TUnion:
		var lastErr error
		for _, alt := range dt.Elem {
			coerced, err := Typecheck(value, alt)
			if err == nil {
				return coerced, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = mismatch(dt, value)
		}
		return nil, lastErr

	case TDict:
		if value.Kind != tree.KindMap {
			return nil, mismatch(dt, value)
		}
		out := tree.NewMap()
		for _, k := range value.Keys {
			coercedVal, err := Typecheck(value.Items[k], dt.Elem[1])
			if err != nil {
				return nil, err
			}
			out.Set(k, coercedVal)
		}
		return out, nil

	default:
		return value, nil
	}
}

func mismatch(dt *DType, value *tree.Node) error {
	return &TypeMismatch{DType: dt.String(), Value: value.AsString()}
}

// asListLiteral accepts either an actual list node, or a string like
// "[1,2]" which is parsed as a bracketed comma-separated literal list.
func asListLiteral(value *tree.Node) ([]*tree.Node, error) {
	if value.Kind == tree.KindList {
		return value.List, nil
	}
	if value.Kind != tree.KindString {
		return nil, &TypeMismatch{DType: "List", Value: value.AsString()}
	}
	s := strings.TrimSpace(value.String)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, &TypeMismatch{DType: "List", Value: s}
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, nil
	}
	parts := splitTopLevel(inner)
	out := make([]*tree.Node, len(parts))
	for i, p := range parts {
		out[i] = tree.NewString(strings.TrimSpace(strings.Trim(p, `"'`)))
	}
	return out, nil
}
