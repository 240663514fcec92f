// Package runtime implements the Cab Runtime & Wrangler (§4.7): building
// an InvocationPlan from a bound cab, handing it to a Backend, reading
// its streams through the wrangler pipeline, and resolving the final
// status and captured outputs.
package runtime

import (
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/tree"
)

// BuildPlan composes an InvocationPlan for a bound binary/task-runner cab
// invocation: argv via cab.BuildArgv, the cab's declared environment
// merged over the caller's process environment, workdir, and an output
// manifest of every file-like output's resolved path (used later for
// skip_if_outputs freshness checks and MissingRequiredOutput detection).
func BuildPlan(c *cab.Cab, bound map[string]*tree.Node, implicit map[string]bool, workdir string, processEnv map[string]string) (*cab.InvocationPlan, error) {
	argv, err := cab.BuildArgv(c, bound, implicit)
	if err != nil {
		return nil, err
	}
	if c.Flavour.Kind == cab.FlavourBinary || c.Flavour.Kind == cab.FlavourTaskRunner {
		if c.Flavour.Command != "" {
			argv = append([]string{c.Flavour.Command}, argv...)
		}
	}

	env := map[string]string{}
	for k, v := range processEnv {
		env[k] = v
	}
	for k, v := range c.Management.Environment {
		env[k] = v
	}

	plan := &cab.InvocationPlan{
		Argv:    argv,
		Env:     env,
		Workdir: workdir,
	}
	plan.OutputManifest = map[string]string{}
	for _, name := range c.OutputOrder {
		s := c.Outputs[name]
		if s.IsFileLike() {
			if v, ok := bound[name]; ok {
				plan.OutputManifest[name] = v.AsString()
			}
		}
	}
	return plan, nil
}
