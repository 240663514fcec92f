package subst

import (
	"fmt"
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// Substitute replaces every "{…}" occurrence in s with the looked-up
// value from ns, honoring "{{" as a literal "{". The interior of a
// substitution is a dotted namespace lookup, optionally followed by a
// Python-style format spec after ':' (e.g. "{recipe.loop:02d}"). Returns
// the rendered string and the list of paths that did not resolve (the
// caller decides whether that is fatal).
func Substitute(s string, ns *Namespaces) (string, []string, error) {
	var out strings.Builder
	var unresolved []string
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '{' {
			if i+1 < len(s) && s[i+1] == '{' {
				out.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", nil, &ParseError{Input: s, Msg: "unterminated '{' substitution"}
			}
			body := s[i+1 : i+end]
			rendered, ok, err := renderOne(body, ns)
			if err != nil {
				return "", nil, err
			}
			if !ok {
				unresolved = append(unresolved, body)
			}
			out.WriteString(rendered)
			i += end + 1
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), unresolved, nil
}

func renderOne(body string, ns *Namespaces) (string, bool, error) {
	path := body
	spec := ""
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		path = body[:idx]
		spec = body[idx+1:]
	}
	n, ok := ns.Lookup(strings.TrimSpace(path))
	if !ok {
		return "", false, nil
	}
	if spec == "" {
		return n.AsString(), true, nil
	}
	rendered, err := formatValue(n, spec)
	if err != nil {
		return "", false, err
	}
	return rendered, true, nil
}

// formatValue renders n using a Python-style format spec such as "02d" or
// ".2f", translated directly to the equivalent fmt verb.
func formatValue(n *tree.Node, spec string) (string, error) {
	verb := "%" + spec
	switch n.Kind {
	case tree.KindInt:
		return fmt.Sprintf(verb, n.Int), nil
	case tree.KindFloat:
		return fmt.Sprintf(verb, n.Float), nil
	case tree.KindString:
		return fmt.Sprintf(verb, n.String), nil
	case tree.KindBool:
		return fmt.Sprintf(verb, n.Bool), nil
	default:
		return fmt.Sprintf(verb, n.AsString()), nil
	}
}

// IsFormula reports whether a raw string value is a formula ("=…"), and
// whether the leading "=" is itself escaped ("==…" means a literal string
// starting with "=").
func IsFormula(raw string) (isFormula, escaped bool, body string) {
	if strings.HasPrefix(raw, "==") {
		return false, true, raw[1:]
	}
	if strings.HasPrefix(raw, "=") {
		return true, false, raw[1:]
	}
	return false, false, raw
}

// EvalString evaluates raw as either a formula (leading "=") or a plain
// substitution string, returning the resulting node and whether the
// overall result is the UNSET sentinel.
func EvalString(raw string, ns *Namespaces) (*tree.Node, bool, error) {
	isFormula, escaped, body := IsFormula(raw)
	if escaped {
		return tree.NewString(body), false, nil
	}
	if isFormula {
		expr, err := ParseFormula(body)
		if err != nil {
			return nil, false, err
		}
		n, unset, err := Eval(expr, ns)
		if err != nil {
			return nil, false, err
		}
		return n, unset, nil
	}
	rendered, unresolved, err := Substitute(raw, ns)
	if err != nil {
		return nil, false, err
	}
	return tree.NewString(rendered), len(unresolved) > 0 && rendered == "", nil
}
