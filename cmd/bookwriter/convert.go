package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
	"github.com/bgreenawald/non-fiction-book-writer/internal/convert"
)

var (
	convertFormat    string
	convertRecombine bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <book-dir>",
	Short: "Convert the combined book to PDF, EPUB or HTML",
	Long: `Convert output/book.md with pandoc.

pandoc is used from PATH when installed, otherwise through Docker. Without
either, EPUB is still produced by the built-in writer.

Formats: pdf, epub, html, or both (pdf and epub).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir := bookdir.New(args[0])

		formats, err := convert.ParseFormats(convertFormat)
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig(dir, config.Overrides{})
		if err != nil {
			return err
		}

		input := dir.BookPath()
		if _, err := os.Stat(input); err != nil || convertRecombine {
			if input, err = combine(dir); err != nil {
				return err
			}
		}

		runner, closeRunner := convert.Detect(ctx, cfg.Pandoc.Binary, cfg.Pandoc.Image, logger)
		defer closeRunner()
		if runner != nil {
			logger.Info("using pandoc", "via", runner.Name())
		}
		conv := convert.New(convert.Config{Runner: runner, PDFEngine: cfg.Pandoc.PDFEngine, Logger: logger})

		var results []*convert.Result
		var errs []error
		for _, f := range formats {
			res, err := conv.Convert(ctx, input, f)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f, err))
				if !api.IsStructuredOutput() {
					fmt.Println(errorStyle.Render(fmt.Sprintf("%s failed: %v", f, err)))
				}
				continue
			}
			results = append(results, res)
			if !api.IsStructuredOutput() {
				line := fmt.Sprintf("%s written to %s", f, res.Path)
				if res.Pages > 0 {
					line += fmt.Sprintf(" (%d pages)", res.Pages)
				}
				fmt.Println(successStyle.Render(line) + dimStyle.Render(" via "+res.Via))
			}
		}

		if api.IsStructuredOutput() {
			if err := api.Output(results); err != nil {
				return err
			}
		}
		return errors.Join(errs...)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertFormat, "format", "both", "output format: pdf, epub, html or both")
	convertCmd.Flags().BoolVar(&convertRecombine, "recombine", false, "rebuild book.md from the chapter files first")
	rootCmd.AddCommand(convertCmd)
}
