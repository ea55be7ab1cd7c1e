package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/prompts/section"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect and customize the generation prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list [book-dir]",
	Short: "List prompts and whether a book overrides them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrideDir := ""
		if len(args) == 1 {
			overrideDir = bookdir.New(args[0]).PromptsPath()
		}
		r := section.NewResolver(overrideDir)

		type row struct {
			Key         string `json:"key" yaml:"key"`
			Description string `json:"description" yaml:"description"`
			Source      string `json:"source" yaml:"source"`
		}
		var rows []row
		for _, p := range r.AllEmbedded() {
			resolved, err := r.Resolve(p.Key)
			if err != nil {
				return err
			}
			rows = append(rows, row{Key: p.Key, Description: p.Description, Source: resolved.Source})
		}

		if api.IsStructuredOutput() {
			return api.Output(rows)
		}
		t := newTable("Key", "Source", "Description")
		for _, r := range rows {
			t.Row(r.Key, r.Source, dimStyle.Render(r.Description))
		}
		fmt.Println(t)
		return nil
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export <book-dir>",
	Short: "Copy the built-in prompts into a book's prompts/ directory for editing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := bookdir.New(args[0])
		n, err := section.NewResolver("").Export(dir.PromptsPath())
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Exported %d prompt(s) to %s", n, dir.PromptsPath())))
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsExportCmd)
	rootCmd.AddCommand(promptsCmd)
}
