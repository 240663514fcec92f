package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepwise-run/stepwise/internal/config"
	"github.com/stepwise-run/stepwise/internal/schema"
	"github.com/stepwise-run/stepwise/internal/tree"
)

var docCmd = &cobra.Command{
	Use:   "doc <file> <recipe>",
	Short: "Print a recipe's documentation",
	Long: `Doc performs a read-only traversal of the merged document tree and
prints a structured description of a recipe's inputs, outputs, and step
tree (§6 "Documentation").`,
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

		fmt.Printf("recipe %s\n", r.Name)
		printSchemaSection("inputs", r.Inputs, r.InputOrder)
		printSchemaSection("outputs", r.Outputs, r.OutputOrder)

		fmt.Println("steps:")
		for _, step := range r.Steps {
			kind := "cab"
			if step.IsSubRecipe {
				kind = "recipe"
			}
			fmt.Printf("  - %s (%s: %s)\n", step.Label, kind, step.Uses)
			if c, ok := cabs[step.Uses]; ok && !step.IsSubRecipe {
				printSchemaSection("    inputs", c.Inputs, c.InputOrder)
				printSchemaSection("    outputs", c.Outputs, c.OutputOrder)
			}
			if len(step.Tags) > 0 {
				fmt.Printf("    tags: %v\n", step.Tags)
			}
		}
		return nil
	},
}

func printSchemaSection(title string, schemas map[string]*schema.Schema, order []string) {
	if len(order) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, name := range order {
		s := schemas[name]
		if s.IsGroup() {
			fmt.Printf("  %s: <group>\n", name)
			continue
		}
		cat := schema.EffectiveCategory(s)
		desc := s.DType.String()
		if s.Info != "" {
			desc += " - " + s.Info
		}
		fmt.Printf("  %s (%s): %s\n", name, cat, desc)
	}
}

func init() {
	rootCmd.AddCommand(docCmd)
}
