package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
)

// BookSummary is one row of the list command.
type BookSummary struct {
	Name      string  `json:"name" yaml:"name"`
	Path      string  `json:"path" yaml:"path"`
	Model     string  `json:"model,omitempty" yaml:"model,omitempty"`
	Started   bool    `json:"started" yaml:"started"`
	Sections  int     `json:"sections" yaml:"sections"`
	Completed int     `json:"completed" yaml:"completed"`
	Failed    int     `json:"failed" yaml:"failed"`
	Percent   float64 `json:"percent" yaml:"percent"`
}

var listCmd = &cobra.Command{
	Use:   "list [root]",
	Short: "List book projects under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		books, err := bookdir.List(root)
		if err != nil {
			return err
		}

		var rows []BookSummary
		for _, dir := range books {
			row := BookSummary{Name: dir.Name(), Path: dir.Path()}
			store, err := state.NewFileStore(dir.OutputPath(), logger)
			if err != nil {
				return err
			}
			st, err := store.Load(cmd.Context())
			if err != nil {
				logger.Warn("skipping unreadable state", "book", dir.Name(), "error", err)
			}
			if st != nil {
				p := state.GetOverallProgress(st)
				row.Model = st.Model
				row.Started = true
				row.Sections = p.TotalSections
				row.Completed = p.Completed
				row.Failed = p.Failed
				row.Percent = p.Percent()
			}
			rows = append(rows, row)
		}

		if api.IsStructuredOutput() {
			return api.Output(rows)
		}
		if len(rows) == 0 {
			fmt.Println(dimStyle.Render("No books found in " + root))
			return nil
		}
		t := newTable("Book", "Model", "Progress", "Failed")
		for _, r := range rows {
			prog := dimStyle.Render("not started")
			if r.Started {
				prog = fmt.Sprintf("%d/%d (%.0f%%)", r.Completed, r.Sections, r.Percent)
			}
			t.Row(r.Name, r.Model, prog, fmt.Sprint(r.Failed))
		}
		fmt.Println(t)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
