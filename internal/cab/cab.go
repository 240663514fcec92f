// Package cab implements the Cab Model (§4.4): named external-tool
// definitions, their invocation flavours, per-parameter argv policies, and
// the wrangler/management pipeline applied to their output.
package cab

import (
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// Image describes a container/VM image reference, carried even though the
// core ships no image-backed backend (§4.8 treats those as external
// collaborators); "direct process" ignores it.
type Image struct {
	Registry string
	Name     string
	Version  string
	Path     string
}

// Cab is a named entry under the "cabs" top-level key.
type Cab struct {
	Name    string
	Flavour Flavour
	Image   Image

	Policies *schema.Policies

	Inputs      map[string]*schema.Schema
	InputOrder  []string
	Outputs     map[string]*schema.Schema
	OutputOrder []string

	Management *Management

	// DynamicSchema, if set, names an external-scripting callable invoked
	// with the bound params that may return a revised inputs/outputs map
	// (§9 design notes: treated as a capability of the scripting
	// collaborator, not implemented by the core).
	DynamicSchema string
}

// Parse builds a Cab from its definition node under cabs.<name>.
func Parse(name string, n *tree.Node) (*Cab, error) {
	if n == nil || n.Kind != tree.KindMap {
		return nil, &DefinitionError{Cab: name, Msg: "cab definition must be a mapping"}
	}
	c := &Cab{Name: name, Policies: &schema.Policies{Prefix: "--"}}

	flav, err := ParseFlavour(name, n.Get("flavour"))
	if err != nil {
		return nil, err
	}
	c.Flavour = flav
	if flav.Kind == FlavourBinary && flav.Command == "" {
		if v := n.Get("command"); v != nil {
			c.Flavour.Command = v.AsString()
		}
	}

	if v := n.Get("image"); v != nil {
		switch v.Kind {
		case tree.KindString:
			c.Image = Image{Name: v.String}
		case tree.KindMap:
			if r := v.Get("registry"); r != nil {
				c.Image.Registry = r.AsString()
			}
			if nm := v.Get("name"); nm != nil {
				c.Image.Name = nm.AsString()
			}
			if ver := v.Get("version"); ver != nil {
				c.Image.Version = ver.AsString()
			}
			if p := v.Get("path"); p != nil {
				c.Image.Path = p.AsString()
			}
		}
	}

	if v := n.Get("policies"); v != nil {
		c.Policies = schema.ParsePolicies(v)
	}

	inputs, inOrder, err := schema.ParseMap(n.Get("inputs"))
	if err != nil {
		return nil, &DefinitionError{Cab: name, Msg: "inputs: " + err.Error()}
	}
	c.Inputs, c.InputOrder = inputs, inOrder

	outputs, outOrder, err := schema.ParseMap(n.Get("outputs"))
	if err != nil {
		return nil, &DefinitionError{Cab: name, Msg: "outputs: " + err.Error()}
	}
	c.Outputs, c.OutputOrder = outputs, outOrder

	mgmt, err := ParseManagement(name, n.Get("management"))
	if err != nil {
		return nil, err
	}
	c.Management = mgmt

	if v := n.Get("dynamic_schema"); v != nil {
		c.DynamicSchema = v.AsString()
	}

	return c, nil
}

// EffectivePolicies resolves the per-parameter policy for a named input,
// falling back to the cab-level default when the parameter declares none
// of its own.
func (c *Cab) EffectivePolicies(paramName string) *schema.Policies {
	s, ok := c.Inputs[paramName]
	if ok && s.Policies != nil && hasAnyPolicy(s.Policies) {
		return s.Policies
	}
	return c.Policies
}

func hasAnyPolicy(p *schema.Policies) bool {
	return p.KeyValue || p.Positional || p.PositionalHead || p.Repeat != "" ||
		p.Skip || p.SkipImplicits || p.DisableSubstitutions || p.ExplicitTrue != "" ||
		p.ExplicitFalse != "" || p.Split != "" || len(p.Replace) > 0 || p.Format != "" ||
		len(p.FormatList) > 0 || len(p.FormatListScalar) > 0 || p.PassMissingAsNone
}
