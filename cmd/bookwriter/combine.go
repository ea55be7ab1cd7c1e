package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/generator"
	"github.com/bgreenawald/non-fiction-book-writer/internal/outline"
)

var combineCmd = &cobra.Command{
	Use:   "combine <book-dir>",
	Short: "Combine chapter files into output/book.md",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := bookdir.New(args[0])
		path, err := combine(dir)
		if err != nil {
			return err
		}
		if api.IsStructuredOutput() {
			return api.Output(map[string]string{"path": path})
		}
		fmt.Println(successStyle.Render("Combined book written to " + path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(combineCmd)
}

// combine writes book.md titled after the rubric, or the book config when
// the rubric has no title.
func combine(dir *bookdir.Dir) (string, error) {
	if err := dir.Validate(); err != nil {
		return "", err
	}
	ol, _, err := outline.Load(dir.RubricPath())
	if err != nil {
		return "", err
	}
	title := ol.Title
	if title == "" {
		if bc, err := dir.Config(); err == nil && bc.Title != "" {
			title = bc.Title
		} else {
			title = dir.Name()
		}
	}
	return generator.CombineChapters(dir.OutputPath(), title)
}
