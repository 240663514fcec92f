package cab

import "github.com/stepwise-run/stepwise/internal/tree"

// FlavourKind discriminates the four cab flavours of §4.4.
type FlavourKind string

const (
	FlavourBinary     FlavourKind = "binary"
	FlavourTaskRunner FlavourKind = "external-task-runner"
	FlavourCallable   FlavourKind = "callable"
	FlavourInline     FlavourKind = "inline"
)

// Flavour is the tagged variant describing how a cab's invocation is built
// and how its inputs/outputs are delivered.
type Flavour struct {
	Kind FlavourKind

	// Binary / external-task-runner: the command (or wrapper command) run
	// on the command line.
	Command string

	// external-task-runner: the named task the driver calls inside the
	// interpreter.
	Task string

	// callable: the dotted module.callable path the driver imports and
	// invokes with the bound inputs as keyword arguments.
	Callable string

	// inline: interpreter command, the declared code body, an optional
	// preamble run before it, and the variable names exchanged with the
	// driver before/after exec.
	Interpreter string
	Code        string
	Preamble    string
	InputVars   []string
	OutputVars  []string
}

// ParseFlavour reads the "flavour" entry of a cab definition, defaulting to
// binary when absent (the common case: command plus argv policies).
func ParseFlavour(cabName string, n *tree.Node) (Flavour, error) {
	if n == nil {
		return Flavour{Kind: FlavourBinary}, nil
	}
	if n.Kind == tree.KindString {
		return flavourFromKind(cabName, FlavourKind(n.String), nil)
	}
	if n.Kind != tree.KindMap {
		return Flavour{}, &DefinitionError{Cab: cabName, Msg: "flavour must be a string or a mapping"}
	}
	kind := FlavourBinary
	if v := n.Get("kind"); v != nil {
		kind = FlavourKind(v.AsString())
	}
	return flavourFromKind(cabName, kind, n)
}

func flavourFromKind(cabName string, kind FlavourKind, n *tree.Node) (Flavour, error) {
	f := Flavour{Kind: kind}
	get := func(key string) *tree.Node {
		if n == nil {
			return nil
		}
		return n.Get(key)
	}
	switch kind {
	case "", FlavourBinary:
		f.Kind = FlavourBinary
	case FlavourTaskRunner:
		if v := get("task"); v != nil {
			f.Task = v.AsString()
		}
	case FlavourCallable:
		if v := get("callable"); v != nil {
			f.Callable = v.AsString()
		}
		if v := get("interpreter"); v != nil {
			f.Interpreter = v.AsString()
		}
	case FlavourInline:
		if v := get("code"); v != nil {
			f.Code = v.AsString()
		}
		if v := get("preamble"); v != nil {
			f.Preamble = v.AsString()
		}
		if v := get("interpreter"); v != nil {
			f.Interpreter = v.AsString()
		}
		if v := get("input_vars"); v != nil && v.Kind == tree.KindList {
			for _, item := range v.List {
				f.InputVars = append(f.InputVars, item.AsString())
			}
		}
		if v := get("output_vars"); v != nil && v.Kind == tree.KindList {
			for _, item := range v.List {
				f.OutputVars = append(f.OutputVars, item.AsString())
			}
		}
	default:
		return Flavour{}, &DefinitionError{Cab: cabName, Msg: "unknown flavour " + string(kind)}
	}
	if v := get("command"); v != nil {
		f.Command = v.AsString()
	}
	return f, nil
}
