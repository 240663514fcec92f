package schema

import (
	"fmt"
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// Category is the auto-classified (or explicitly overridden) role of a
// parameter, used by the documentation collaborator and by validation.
type Category string

const (
	CategoryRequired Category = "Required"
	CategoryOptional Category = "Optional"
	CategoryImplicit Category = "Implicit"
	CategoryObscure  Category = "Obscure"
	CategoryHidden   Category = "Hidden"
)

// Schema describes one parameter (input or output), or a group of
// parameters addressable by dot path when it has no dtype of its own.
type Schema struct {
	Name string

	DType *DType // nil for a group

	HasDefault bool
	Default    *tree.Node

	Required bool

	Choices        []*tree.Node
	ElementChoices []*tree.Node

	// Implicit is a substitution template computed at bind time; an
	// implicit parameter is not user-settable (invariant: at most one of
	// {has default, required, implicit}).
	Implicit string

	MustExist           bool
	Writable             bool
	Mkdir                bool
	RemoveIfExists       bool
	AccessParentDir      bool
	SkipFreshnessChecks  bool

	// NomDeGuerre is the name under which this parameter is passed to the
	// underlying tool, if different from Name.
	NomDeGuerre string

	Policies *Policies

	// Aliases lists dotted target paths ("step.param") or wildcard forms
	// declared inline on this parameter.
	Aliases []string

	// CategoryOverride, if non-empty, takes precedence over auto
	// classification in EffectiveCategory.
	CategoryOverride Category

	Info string

	// Group holds nested parameter schemas when this entry has no dtype
	// of its own (a subsection with no known leaf attributes).
	Group map[string]*Schema
	// GroupOrder preserves declaration order of Group's keys.
	GroupOrder []string
}

// IsGroup reports whether this entry is a nested group rather than a leaf
// parameter.
func (s *Schema) IsGroup() bool { return s.DType == nil && s.Group != nil }

// IsFileLike reports whether the schema's dtype is file-like.
func (s *Schema) IsFileLike() bool { return s.DType.IsFileLike() }

var leafAttributeKeys = map[string]bool{
	"dtype": true, "default": true, "required": true, "choices": true,
	"element_choices": true, "implicit": true, "must_exist": true,
	"writable": true, "mkdir": true, "remove_if_exists": true,
	"access_parent_dir": true, "skip_freshness_checks": true,
	"nom_de_guerre": true, "policies": true, "aliases": true,
	"category": true, "info": true,
}

// ParseMap parses a "inputs:"/"outputs:" mapping node into named Schema
// entries, recursing into nested groups (a subsection with none of the
// known leaf attribute keys).
func ParseMap(n *tree.Node) (map[string]*Schema, []string, error) {
	out := map[string]*Schema{}
	var order []string
	if n == nil {
		return out, order, nil
	}
	if n.Kind != tree.KindMap {
		return nil, nil, &SchemaError{Msg: "expected a mapping of parameter schemas"}
	}
	for _, name := range n.Keys {
		entry, err := Parse(name, n.Items[name])
		if err != nil {
			return nil, nil, err
		}
		out[name] = entry
		order = append(order, name)
	}
	return out, order, nil
}

// Parse parses a single schema entry, in either shorthand ("type = default
// * info") or longhand mapping form, or as a nested group.
func Parse(name string, n *tree.Node) (*Schema, error) {
	if n == nil {
		return &Schema{Name: name}, nil
	}
	if n.Kind == tree.KindString {
		return parseShorthand(name, n.String)
	}
	if n.Kind != tree.KindMap {
		return &Schema{Name: name, DType: &DType{Kind: TString}, HasDefault: true, Default: n}, nil
	}
	if isGroupNode(n) {
		group, order, err := ParseMap(n)
		if err != nil {
			return nil, err
		}
		return &Schema{Name: name, Group: group, GroupOrder: order}, nil
	}
	return parseLonghand(name, n)
}

func isGroupNode(n *tree.Node) bool {
	for _, k := range n.Keys {
		if leafAttributeKeys[k] {
			return false
		}
	}
	return len(n.Keys) > 0
}

func parseLonghand(name string, n *tree.Node) (*Schema, error) {
	s := &Schema{Name: name}
	if v := n.Get("dtype"); v != nil {
		dt, err := ParseDType(v.AsString())
		if err != nil {
			return nil, &SchemaError{Param: name, Msg: err.Error()}
		}
		s.DType = dt
	} else {
		s.DType = &DType{Kind: TString}
	}
	if v := n.Get("default"); v != nil {
		s.HasDefault = true
		s.Default = v
	}
	if v := n.Get("required"); v != nil {
		s.Required = v.Bool
	}
	if v := n.Get("choices"); v != nil && v.Kind == tree.KindList {
		s.Choices = v.List
	}
	if v := n.Get("element_choices"); v != nil && v.Kind == tree.KindList {
		s.ElementChoices = v.List
	}
	if v := n.Get("implicit"); v != nil {
		s.Implicit = v.AsString()
	}
	if v := n.Get("must_exist"); v != nil {
		s.MustExist = v.Bool
	}
	if v := n.Get("writable"); v != nil {
		s.Writable = v.Bool
	}
	if v := n.Get("mkdir"); v != nil {
		s.Mkdir = v.Bool
	}
	if v := n.Get("remove_if_exists"); v != nil {
		s.RemoveIfExists = v.Bool
	}
	if v := n.Get("access_parent_dir"); v != nil {
		s.AccessParentDir = v.Bool
	}
	if v := n.Get("skip_freshness_checks"); v != nil {
		s.SkipFreshnessChecks = v.Bool
	}
	if v := n.Get("nom_de_guerre"); v != nil {
		s.NomDeGuerre = v.AsString()
	}
	s.Policies = ParsePolicies(n.Get("policies"))
	if v := n.Get("aliases"); v != nil {
		switch v.Kind {
		case tree.KindString:
			s.Aliases = []string{v.String}
		case tree.KindList:
			for _, item := range v.List {
				s.Aliases = append(s.Aliases, item.AsString())
			}
		}
	}
	if v := n.Get("category"); v != nil {
		s.CategoryOverride = Category(v.AsString())
	}
	if v := n.Get("info"); v != nil {
		s.Info = v.AsString()
	}

	if err := validateInvariant(s); err != nil {
		return nil, err
	}
	return s, nil
}

// parseShorthand parses "type = default * \"info\"" (default and info
// optional, '*' separates default from info).
func parseShorthand(name, raw string) (*Schema, error) {
	s := &Schema{Name: name}
	body := raw
	info := ""
	if idx := strings.Index(body, "*"); idx >= 0 {
		info = strings.TrimSpace(strings.Trim(strings.TrimSpace(body[idx+1:]), `"`))
		body = body[:idx]
	}
	typePart := body
	defaultPart := ""
	hasDefault := false
	if idx := strings.Index(body, "="); idx >= 0 {
		typePart = body[:idx]
		defaultPart = strings.TrimSpace(body[idx+1:])
		hasDefault = true
	}
	dt, err := ParseDType(strings.TrimSpace(typePart))
	if err != nil {
		return nil, &SchemaError{Param: name, Msg: err.Error()}
	}
	s.DType = dt
	s.Info = info
	if hasDefault {
		v, err := Typecheck(tree.NewString(defaultPart), dt)
		if err != nil {
			return nil, err
		}
		s.HasDefault = true
		s.Default = v
	}
	s.Policies = &Policies{Prefix: "--"}
	return s, nil
}

func validateInvariant(s *Schema) error {
	count := 0
	if s.HasDefault {
		count++
	}
	if s.Required {
		count++
	}
	if s.Implicit != "" {
		count++
	}
	if count > 1 {
		return &SchemaError{Param: s.Name, Msg: "a parameter may have at most one of {default, required, implicit}"}
	}
	if s.Implicit != "" && s.Required {
		return &SchemaError{Param: s.Name, Msg: "an implicit parameter cannot also be required"}
	}
	return nil
}

// EffectiveCategory auto-classifies a schema entry unless explicitly set.
func EffectiveCategory(s *Schema) Category {
	if s.CategoryOverride != "" {
		return s.CategoryOverride
	}
	switch {
	case s.Implicit != "":
		return CategoryImplicit
	case s.Required:
		return CategoryRequired
	case strings.HasPrefix(s.Name, "_"):
		return CategoryHidden
	case s.HasDefault:
		return CategoryOptional
	default:
		return CategoryObscure
	}
}

// GroupMember looks up a dotted path ("g.x") within a group schema,
// returning nil if not a group or not found.
func (s *Schema) GroupMember(dotted string) *Schema {
	cur := s
	for _, seg := range strings.Split(dotted, ".") {
		if cur == nil || cur.Group == nil {
			return nil
		}
		cur = cur.Group[seg]
	}
	return cur
}

func (s *Schema) String() string {
	if s.IsGroup() {
		return fmt.Sprintf("%s:<group %d members>", s.Name, len(s.Group))
	}
	return fmt.Sprintf("%s:%s", s.Name, s.DType)
}
