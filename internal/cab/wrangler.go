package cab

import "strings"

// ActionKind discriminates the wrangler action grammar of §4.4.
type ActionKind string

const (
	ActionParseOutput         ActionKind = "PARSE_OUTPUT"
	ActionParseJSONOutputs    ActionKind = "PARSE_JSON_OUTPUTS"
	ActionParseJSONOutputDict ActionKind = "PARSE_JSON_OUTPUT_DICT"
	ActionReplace             ActionKind = "REPLACE"
	ActionHighlight           ActionKind = "HIGHLIGHT"
	ActionSeverity            ActionKind = "SEVERITY"
	ActionSuppress            ActionKind = "SUPPRESS"
	ActionWarning             ActionKind = "WARNING"
	ActionError               ActionKind = "ERROR"
	ActionDeclareSuccess      ActionKind = "DECLARE_SUCCESS"
)

// Action is one parsed wrangler action, applied to every line a rule's
// regex matches.
type Action struct {
	Kind ActionKind

	// PARSE_OUTPUT: optional output name (defaults to the group name),
	// the named capture group, and the dtype to coerce it to.
	OutputName string
	Group      string
	DType      string

	// REPLACE/WARNING/ERROR: the literal text.
	Text string

	// HIGHLIGHT/SEVERITY: the style or severity token.
	Style string
}

// ParseAction parses one action token from a wrangler rule's action list,
// e.g. "PARSE_OUTPUT:eater:str", "PARSE_OUTPUT:name:group:integer", "ERROR",
// "ERROR:custom message", "SUPPRESS".
func ParseAction(raw string) (Action, error) {
	parts := strings.Split(raw, ":")
	kind := ActionKind(strings.TrimSpace(parts[0]))
	switch kind {
	case ActionParseOutput:
		switch len(parts) {
		case 3:
			return Action{Kind: kind, Group: parts[1], OutputName: parts[1], DType: parts[2]}, nil
		case 4:
			return Action{Kind: kind, OutputName: parts[1], Group: parts[2], DType: parts[3]}, nil
		default:
			return Action{}, &DefinitionError{Msg: "PARSE_OUTPUT expects :group:dtype or :name:group:dtype, got " + raw}
		}
	case ActionParseJSONOutputs, ActionParseJSONOutputDict, ActionSuppress, ActionDeclareSuccess:
		return Action{Kind: kind}, nil
	case ActionReplace:
		return Action{Kind: kind, Text: strings.Join(parts[1:], ":")}, nil
	case ActionHighlight:
		return Action{Kind: kind, Style: strings.Join(parts[1:], ":")}, nil
	case ActionSeverity:
		return Action{Kind: kind, Style: strings.Join(parts[1:], ":")}, nil
	case ActionWarning:
		return Action{Kind: kind, Text: strings.Join(parts[1:], ":")}, nil
	case ActionError:
		return Action{Kind: kind, Text: strings.Join(parts[1:], ":")}, nil
	default:
		return Action{}, &DefinitionError{Msg: "unknown wrangler action " + raw}
	}
}
