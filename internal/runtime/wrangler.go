package runtime

import (
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/logging"
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// lineVerdict is what applying the wrangler pipeline to one line decided.
type lineVerdict struct {
	Text           string
	Severity       logging.Severity
	Suppress       bool
	DeclareSuccess bool
	Warnings       []string
	Errors         []string
}

// applyWrangler runs every rule whose pattern matches line, in the cab's
// declared order; all matched rules' actions fire (not just the first
// match), and SUPPRESS only affects whether the line is displayed, never
// whether later actions (including another rule's PARSE_OUTPUT) still run.
func applyWrangler(line string, rules []cab.WranglerRule, outputSchema map[string]*schema.Schema, captured *Captured) lineVerdict {
	v := lineVerdict{Text: line, Severity: logging.SeverityInfo}
	for _, rule := range rules {
		loc := rule.Pattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		names := rule.Pattern.SubexpNames()
		groups := map[string]string{}
		for i, name := range names {
			if name == "" || loc[2*i] < 0 {
				continue
			}
			groups[name] = line[loc[2*i]:loc[2*i+1]]
		}
		for _, a := range rule.Actions {
			applyAction(a, line, groups, outputSchema, captured, &v)
		}
	}
	return v
}

func applyAction(a cab.Action, line string, groups map[string]string, outputSchema map[string]*schema.Schema, captured *Captured, v *lineVerdict) {
	switch a.Kind {
	case cab.ActionParseOutput:
		raw, ok := groups[a.Group]
		if !ok {
			return
		}
		dt, err := schema.ParseDType(a.DType)
		value := tree.NewString(raw)
		if err == nil {
			if coerced, cerr := schema.Typecheck(value, dt); cerr == nil {
				value = coerced
			}
		}
		captured.set(a.OutputName, rankParseOutput, value)

	case cab.ActionParseJSONOutputs:
		captured.applyParseJSONOutputs(line)

	case cab.ActionParseJSONOutputDict:
		captured.applyParseJSONOutputDict(line)

	case cab.ActionReplace:
		v.Text = a.Text

	case cab.ActionHighlight:
		// Display styling only; the severity/text stream is unaffected.

	case cab.ActionSeverity:
		v.Severity = logging.Severity(a.Style)

	case cab.ActionSuppress:
		v.Suppress = true

	case cab.ActionWarning:
		v.Warnings = append(v.Warnings, a.Text)
		v.Severity = logging.SeverityWarning

	case cab.ActionError:
		v.Errors = append(v.Errors, a.Text)
		v.Severity = logging.SeverityError

	case cab.ActionDeclareSuccess:
		v.DeclareSuccess = true
	}
}
