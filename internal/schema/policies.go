package schema

import "github.com/stepwise-run/stepwise/internal/tree"

// Policies controls how a single bound parameter is turned into argv for
// the *binary* cab flavour (§4.4). All fields are optional; zero values
// mean "use the default".
type Policies struct {
	Prefix               string            // default "--"
	KeyValue             bool              // "--name=value" instead of "--name value"
	Positional           bool              // passed positionally, in schema order
	PositionalHead       bool              // passed positionally, before keyed options
	Repeat               string            // "list" | "[]" | "repeat" | separator string
	Skip                 bool              // never emit this parameter
	SkipImplicits        bool              // don't emit if value came from an implicit template
	DisableSubstitutions bool              // the value is passed through without {…}/= evaluation
	ExplicitTrue         string            // literal emitted instead of a bare flag when true
	ExplicitFalse        string            // literal emitted when false (boolean params)
	Split                string            // split a delivered string value on this separator
	Replace              map[string]string // substring replacements applied to the parameter's name
	Format               string            // single format template, applied elementwise to lists
	FormatList           []string          // list of templates, consumed one per list element
	FormatListScalar     []string          // list of templates, each given the scalar plus all params
	PassMissingAsNone    bool              // emit a "None"-like placeholder for an unset optional
}

// ParsePolicies reads a "policies:" mapping node into a Policies value.
func ParsePolicies(n *tree.Node) *Policies {
	p := &Policies{Prefix: "--"}
	if n == nil || n.Kind != tree.KindMap {
		return p
	}
	if v := n.Get("prefix"); v != nil {
		p.Prefix = v.AsString()
	}
	if v := n.Get("key_value"); v != nil {
		p.KeyValue = v.Bool
	}
	if v := n.Get("positional"); v != nil {
		p.Positional = v.Bool
	}
	if v := n.Get("positional_head"); v != nil {
		p.PositionalHead = v.Bool
	}
	if v := n.Get("repeat"); v != nil {
		p.Repeat = v.AsString()
	}
	if v := n.Get("skip"); v != nil {
		p.Skip = v.Bool
	}
	if v := n.Get("skip_implicits"); v != nil {
		p.SkipImplicits = v.Bool
	}
	if v := n.Get("disable_substitutions"); v != nil {
		p.DisableSubstitutions = v.Bool
	}
	if v := n.Get("explicit_true"); v != nil {
		p.ExplicitTrue = v.AsString()
	}
	if v := n.Get("explicit_false"); v != nil {
		p.ExplicitFalse = v.AsString()
	}
	if v := n.Get("split"); v != nil {
		p.Split = v.AsString()
	}
	if v := n.Get("replace"); v != nil && v.Kind == tree.KindMap {
		p.Replace = map[string]string{}
		for _, k := range v.Keys {
			p.Replace[k] = v.Items[k].AsString()
		}
	}
	if v := n.Get("format"); v != nil {
		p.Format = v.AsString()
	}
	if v := n.Get("format_list"); v != nil && v.Kind == tree.KindList {
		for _, item := range v.List {
			p.FormatList = append(p.FormatList, item.AsString())
		}
	}
	if v := n.Get("format_list_scalar"); v != nil && v.Kind == tree.KindList {
		for _, item := range v.List {
			p.FormatListScalar = append(p.FormatListScalar, item.AsString())
		}
	}
	if v := n.Get("pass_missing_as_none"); v != nil {
		p.PassMissingAsNone = v.Bool
	}
	return p
}
