package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/config"
	"github.com/stepwise-run/stepwise/internal/logging"
	"github.com/stepwise-run/stepwise/internal/recipe"
	"github.com/stepwise-run/stepwise/internal/scheduler"
	"github.com/stepwise-run/stepwise/internal/tree"
)

var (
	paramFlags    []string
	tagsFlag      []string
	skipTagsFlag  []string
	stepFlag      []string
	backendFlag   string
	maxOpenFiles  int
)

var runCmd = &cobra.Command{
	Use:   "run <file> <recipe> [params...]",
	Short: "Execute a recipe",
	Long: `Run loads the named document, resolves the named recipe, and executes
its steps. Parameters may be given with --params name=value (repeatable)
or positionally as trailing "name=value" arguments.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, recipeName := args[0], args[1]

		explicit := map[string]*tree.Node{}
		if err := collectParams(paramFlags, explicit); err != nil {
			return err
		}
		if err := collectParams(args[2:], explicit); err != nil {
			return err
		}

		limits := backend.ResourceLimits{MaxOpenFiles: uint64(maxOpenFiles)}
		if err := backend.CheckOpenFileBudget(limits); err != nil {
			return err
		}

		loader := tree.NewLoader(config.IncludePaths()...)
		root, err := loader.Load(filePath)
		if err != nil {
			return fmt.Errorf("loading %s: %w", filePath, err)
		}
		tree.Normalize(root)

		cabs, err := parseCabs(root.Path("cabs"))
		if err != nil {
			return err
		}
		recipes, err := parseRecipes(root.Path("lib.recipes"))
		if err != nil {
			return err
		}

		r, ok := recipes[recipeName]
		if !ok {
			return fmt.Errorf("recipe %q not found in %s", recipeName, filePath)
		}

		workdir, err := os.Getwd()
		if err != nil {
			return err
		}

		var sink logging.Sink
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0755); err != nil {
				return err
			}
			sink, err = logging.NewFileSink(filepath.Join(logDir, recipeName+"-"+runID+".log"))
			if err != nil {
				return err
			}
		} else {
			sink, err = logging.NewFileSink("")
			if err != nil {
				return err
			}
		}
		defer sink.Close()

		sched := &scheduler.Scheduler{
			Cabs:       cabs,
			Recipes:    recipes,
			Dispatcher: backend.NewDispatcher(backend.DirectProcess{Limits: limits}),
			Sink:       sink,
			ProcessEnv: config.RunEnv(),
			ConfigEnv:  config.RunEnv(),
			Workdir:    workdir,
			Info:       infoNode(recipeName, workdir),
		}

		sel := scheduler.Selection{Steps: stepFlag, Tags: tagsFlag, SkipTags: skipTagsFlag}

		ctx, cancel := context.WithCancel(context.Background())
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigs
			config.VerboseLog("received interrupt, cancelling run")
			cancel()
		}()
		defer signal.Stop(sigs)

		outcome, err := sched.RunRecipe(ctx, r, explicit, sel, backendFlag, "")
		if err != nil {
			return fmt.Errorf("recipe %s: %w", recipeName, err)
		}

		for _, name := range r.OutputOrder {
			if v, ok := outcome.Outputs[name]; ok {
				fmt.Printf("%s: %s\n", name, v.AsString())
			}
		}
		return nil
	},
}

// infoNode builds the "info" namespace (§4.3): a handful of read-only
// facts about the current run, not user-settable.
func infoNode(recipeName, workdir string) *tree.Node {
	n := tree.NewMap()
	n.Set("recipe", tree.NewString(recipeName))
	n.Set("run_id", tree.NewString(runID))
	n.Set("workdir", tree.NewString(workdir))
	if host, err := os.Hostname(); err == nil {
		n.Set("hostname", tree.NewString(host))
	}
	return n
}

func collectParams(raw []string, into map[string]*tree.Node) error {
	for _, kv := range raw {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			return fmt.Errorf("invalid parameter %q, expected name=value", kv)
		}
		into[kv[:idx]] = tree.NewString(kv[idx+1:])
	}
	return nil
}

func parseCabs(n *tree.Node) (map[string]*cab.Cab, error) {
	out := map[string]*cab.Cab{}
	if n == nil || n.Kind != tree.KindMap {
		return out, nil
	}
	for _, name := range n.Keys {
		c, err := cab.Parse(name, n.Items[name])
		if err != nil {
			return nil, err
		}
		out[name] = c
	}
	return out, nil
}

func parseRecipes(n *tree.Node) (map[string]*recipe.Recipe, error) {
	out := map[string]*recipe.Recipe{}
	if n == nil || n.Kind != tree.KindMap {
		return out, nil
	}
	for _, name := range n.Keys {
		r, err := recipe.Parse(name, n.Items[name])
		if err != nil {
			return nil, err
		}
		out[name] = r
	}
	return out, nil
}

func init() {
	runCmd.Flags().StringArrayVar(&paramFlags, "params", nil, "explicit recipe parameter, name=value (repeatable)")
	runCmd.Flags().StringSliceVar(&tagsFlag, "tags", nil, "run only steps carrying one of these tags")
	runCmd.Flags().StringSliceVar(&skipTagsFlag, "skip-tags", nil, "never run steps carrying one of these tags")
	runCmd.Flags().StringArrayVar(&stepFlag, "step", nil, "explicit step label or glob to force on (repeatable)")
	runCmd.Flags().StringVar(&backendFlag, "backend", "", "preferred backend name")
	runCmd.Flags().IntVar(&maxOpenFiles, "max-open-files", 0, "fail fast if this many file descriptors are already in use")
	rootCmd.AddCommand(runCmd)
}
