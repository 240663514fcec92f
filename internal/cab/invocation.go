package cab

import (
	"fmt"
	"strings"

	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Mount is a host → in-sandbox path pair with an access mode, carried for
// container/cluster backends (external collaborators per §4.8); "direct
// process" ignores it.
type Mount struct {
	Host    string
	Sandbox string
	Mode    string // e.g. "ro", "rw"
}

// InvocationPlan is what the Backend Dispatcher receives (§4.7): argv for
// binary/task-runner flavours, or a driver script for scripting flavours.
type InvocationPlan struct {
	Argv           []string
	DriverScript   string
	Env            map[string]string
	Workdir        string
	Mounts         []Mount
	// OutputManifest maps each file-like output's schema name to its
	// resolved on-disk path, consulted for freshness checks and
	// MissingRequiredOutput detection (§4.7).
	OutputManifest map[string]string
}

// BuildArgv synthesizes the command-line argv for a *binary* (or
// *external-task-runner*'s driver keyword line) cab invocation: the
// ordering rule is positional_head first, then keyed options in
// schema-declaration order, then remaining positional parameters (§4.4).
// bound holds the already-substituted parameter values; implicit flags
// names whose value came from an implicit template (so skip_implicits can
// drop them).
func BuildArgv(c *Cab, bound map[string]*tree.Node, implicit map[string]bool) ([]string, error) {
	var head, keyed, tail []string
	for _, name := range c.InputOrder {
		s := c.Inputs[name]
		if s.IsGroup() {
			continue
		}
		pol := c.EffectivePolicies(name)
		if pol.Skip {
			continue
		}
		val, present := bound[name]
		if !present {
			if !pol.PassMissingAsNone {
				continue
			}
			val = tree.NewString("None")
		}
		if pol.SkipImplicits && implicit[name] {
			continue
		}

		tokens, err := argvTokens(name, s, pol, val, bound)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			continue
		}
		switch {
		case pol.PositionalHead:
			head = append(head, tokens...)
		case pol.Positional:
			tail = append(tail, tokens...)
		default:
			keyed = append(keyed, tokens...)
		}
	}
	argv := make([]string, 0, len(head)+len(keyed)+len(tail))
	argv = append(argv, head...)
	argv = append(argv, keyed...)
	argv = append(argv, tail...)
	return argv, nil
}

func argvTokens(name string, s *schema.Schema, pol *schema.Policies, val *tree.Node, all map[string]*tree.Node) ([]string, error) {
	flagName := applyReplace(name, pol.Replace)

	if len(pol.FormatListScalar) > 0 && val.Kind != tree.KindList {
		var out []string
		for _, tmpl := range pol.FormatListScalar {
			out = append(out, renderScalarTemplate(tmpl, val, all))
		}
		return prependFlag(flagName, pol, out, false), nil
	}

	if val.Kind == tree.KindBool && !pol.Positional && !pol.PositionalHead {
		return boolTokens(flagName, pol, val.Bool), nil
	}

	effectiveVal := val
	if pol.Split != "" && val.Kind == tree.KindString {
		parts := strings.Split(val.String, pol.Split)
		items := make([]*tree.Node, len(parts))
		for i, p := range parts {
			items[i] = tree.NewString(p)
		}
		effectiveVal = tree.NewList(items...)
	}

	elems := elementsOf(effectiveVal)
	switch {
	case len(pol.FormatList) > 0:
		elems = applyFormatList(elems, pol.FormatList)
	case pol.Format != "":
		elems = applyFormat(elems, pol)
	}

	if effectiveVal.Kind != tree.KindList {
		if len(elems) == 0 {
			return nil, nil
		}
		return prependFlag(flagName, pol, elems, pol.KeyValue), nil
	}

	return listTokens(flagName, pol, elems), nil
}

func applyReplace(name string, replace map[string]string) string {
	if len(replace) == 0 {
		return name
	}
	out := name
	for from, to := range replace {
		out = strings.ReplaceAll(out, from, to)
	}
	return out
}

func elementsOf(n *tree.Node) []string {
	if n.Kind == tree.KindList {
		out := make([]string, len(n.List))
		for i, item := range n.List {
			out[i] = item.AsString()
		}
		return out
	}
	return []string{n.AsString()}
}

// applyFormatList consumes list elements positionally against FormatList's
// templates; elements beyond the template list pass through unformatted.
func applyFormatList(elems []string, templates []string) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		if i < len(templates) {
			out[i] = applyTemplateOne(templates[i], e)
		} else {
			out[i] = e
		}
	}
	return out
}

func applyFormat(elems []string, pol *schema.Policies) []string {
	if pol.Format == "" {
		return elems
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = applyTemplateOne(pol.Format, e)
	}
	return out
}

func applyTemplateOne(tmpl, value string) string {
	if strings.Contains(tmpl, "{}") {
		return strings.ReplaceAll(tmpl, "{}", value)
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, value)
	}
	return tmpl + value
}

func renderScalarTemplate(tmpl string, val *tree.Node, all map[string]*tree.Node) string {
	out := strings.ReplaceAll(tmpl, "{value}", val.AsString())
	for name, n := range all {
		out = strings.ReplaceAll(out, "{"+name+"}", n.AsString())
	}
	return out
}

func boolTokens(flagName string, pol *schema.Policies, value bool) []string {
	if value {
		if pol.ExplicitTrue != "" {
			return []string{pol.Prefix + flagName, pol.ExplicitTrue}
		}
		if pol.KeyValue {
			return []string{pol.Prefix + flagName + "=true"}
		}
		return []string{pol.Prefix + flagName}
	}
	if pol.ExplicitFalse != "" {
		return []string{pol.Prefix + flagName, pol.ExplicitFalse}
	}
	if pol.KeyValue {
		return []string{pol.Prefix + flagName + "=false"}
	}
	return nil
}

func prependFlag(flagName string, pol *schema.Policies, values []string, keyValue bool) []string {
	if pol.Positional || pol.PositionalHead {
		return values
	}
	if len(pol.FormatListScalar) > 0 {
		var out []string
		for _, v := range values {
			out = append(out, pol.Prefix+flagName, v)
		}
		return out
	}
	if len(values) == 0 {
		return nil
	}
	if keyValue {
		return []string{pol.Prefix + flagName + "=" + values[0]}
	}
	return []string{pol.Prefix + flagName, values[0]}
}

// listTokens applies the Repeat policy ("list"/"[]"/"repeat"/separator) to
// a multi-valued (or single-valued-but-declared-list) parameter.
func listTokens(flagName string, pol *schema.Policies, elems []string) []string {
	if pol.Positional || pol.PositionalHead {
		return elems
	}
	mode := pol.Repeat
	if mode == "" {
		mode = "list"
	}
	switch mode {
	case "[]":
		var out []string
		for _, e := range elems {
			if pol.KeyValue {
				out = append(out, pol.Prefix+flagName+"[]="+e)
			} else {
				out = append(out, pol.Prefix+flagName+"[]", e)
			}
		}
		return out
	case "repeat":
		var out []string
		for _, e := range elems {
			if pol.KeyValue {
				out = append(out, pol.Prefix+flagName+"="+e)
			} else {
				out = append(out, pol.Prefix+flagName, e)
			}
		}
		return out
	case "list":
		joined := strings.Join(elems, ",")
		if pol.KeyValue {
			return []string{pol.Prefix + flagName + "=" + joined}
		}
		return []string{pol.Prefix + flagName, joined}
	default:
		joined := strings.Join(elems, mode)
		if pol.KeyValue {
			return []string{pol.Prefix + flagName + "=" + joined}
		}
		return []string{pol.Prefix + flagName, joined}
	}
}
