package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepwise-run/stepwise/internal/backend"
	"github.com/stepwise-run/stepwise/internal/cab"
	"github.com/stepwise-run/stepwise/internal/config"
	"github.com/stepwise-run/stepwise/internal/recipe"
	"github.com/stepwise-run/stepwise/internal/tree"
)

var buildCmd = &cobra.Command{
	Use:   "build <file> <recipe>",
	Short: "Build every cab image a recipe references",
	Long: `Build walks every cab a recipe's steps reference (direct steps and
those of any nested sub-recipe) and invokes each resolved backend's image
build (§4.8, §6 "Build").`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, recipeName := args[0], args[1]

		loader := tree.NewLoader(config.IncludePaths()...)
		root, err := loader.Load(filePath)
		if err != nil {
			return err
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

		dispatcher := backend.NewDispatcher(backend.DirectProcess{})
		seen := map[string]bool{}
		return buildRecipeCabs(r, cabs, recipes, dispatcher, seen)
	},
}

// buildRecipeCabs recurses through r's steps (and any nested sub-recipe's
// steps), building each referenced cab's image exactly once.
func buildRecipeCabs(r *recipe.Recipe, cabs map[string]*cab.Cab, recipes map[string]*recipe.Recipe, dispatcher *backend.Dispatcher, seen map[string]bool) error {
	for _, step := range r.Steps {
		if step.IsSubRecipe {
			sub, ok := recipes[step.Uses]
			if !ok {
				if step.InlineDef == nil {
					continue
				}
				var err error
				sub, err = recipe.Parse(step.Label, step.InlineDef)
				if err != nil {
					return err
				}
			}
			if err := buildRecipeCabs(sub, cabs, recipes, dispatcher, seen); err != nil {
				return err
			}
			continue
		}

		c, ok := cabs[step.Uses]
		if !ok {
			if step.InlineDef == nil {
				continue
			}
			var err error
			c, err = cab.Parse(step.Label, step.InlineDef)
			if err != nil {
				return err
			}
		}
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		b, err := dispatcher.Resolve(backend.Preference{Recipe: r.Backend, Step: step.Backend})
		if err != nil {
			return fmt.Errorf("cab %s: %w", c.Name, err)
		}
		tag, err := b.Build(c.Image)
		if err != nil {
			return fmt.Errorf("building image for cab %s: %w", c.Name, err)
		}
		fmt.Printf("%s: built %s via %s\n", c.Name, tag, b.Name())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
