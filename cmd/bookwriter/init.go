package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
)

var (
	initTitle string
	initModel string
)

var initCmd = &cobra.Command{
	Use:   "init <book-dir>",
	Short: "Create a new book project with a template rubric",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := initTitle
		if title == "" {
			title = filepath.Base(args[0])
		}

		dir, err := bookdir.Create(args[0], title, initModel)
		if err != nil {
			return err
		}
		logger.Info("created book", "path", dir.Path(), "title", title)

		if api.IsStructuredOutput() {
			return api.Output(map[string]string{
				"path":   dir.Path(),
				"rubric": dir.RubricPath(),
				"config": dir.ConfigPath(),
			})
		}
		fmt.Println(successStyle.Render("Created " + dir.Path()))
		fmt.Printf("  Rubric: %s\n", dir.RubricPath())
		fmt.Printf("  Config: %s\n", dir.ConfigPath())
		fmt.Println(dimStyle.Render("Edit the rubric, then run: bookwriter generate " + args[0]))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initTitle, "title", "", "book title (default: directory name)")
	initCmd.Flags().StringVar(&initModel, "model", "", "model to record in the book config")
	rootCmd.AddCommand(initCmd)
}
