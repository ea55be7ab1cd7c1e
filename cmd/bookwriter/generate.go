package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
	"github.com/bgreenawald/non-fiction-book-writer/internal/server"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/tracing"
	"github.com/bgreenawald/non-fiction-book-writer/internal/workflow"
)

// runFlags are shared by generate and resume.
type runFlags struct {
	chapters      string
	model         string
	provider      string
	maxConcurrent int
	metricsAddr   string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.chapters, "chapters", "", "comma-separated chapter ids to generate (e.g. 1,2,appendix_a)")
	cmd.Flags().StringVar(&f.model, "model", "", "model override")
	cmd.Flags().StringVar(&f.provider, "provider", "", "provider override (openrouter, openai, mock)")
	cmd.Flags().IntVar(&f.maxConcurrent, "max-concurrent", 0, "chapters generated in parallel")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve status and Prometheus metrics on this address during the run (e.g. "+server.DefaultAddr+")")
}

var (
	generateFlags runFlags
	resumeFlags   runFlags
)

var generateCmd = &cobra.Command{
	Use:   "generate <book-dir>",
	Short: "Generate the book, skipping sections that are already done",
	Long: `Generate every unfinished section of the book.

Sections already completed in output/state.json are kept. If the rubric
changed since the state was created, the state is discarded and the book
is generated from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBook(cmd.Context(), args[0], &generateFlags, workflow.Generate)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <book-dir>",
	Short: "Retry failed and unfinished sections",
	Long: `Resume a previous run. Failed sections are reset and regenerated
together with any that never finished. Completed sections are not touched.

Resume refuses to run when the rubric changed; use generate instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBook(cmd.Context(), args[0], &resumeFlags, workflow.Resume)
	},
}

func init() {
	generateFlags.register(generateCmd)
	resumeFlags.register(resumeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(resumeCmd)
}

type runFunc func(context.Context, workflow.Options) (*workflow.Report, error)

func runBook(ctx context.Context, path string, f *runFlags, run runFunc) error {
	dir := bookdir.New(path)
	cfg, mgr, err := loadConfig(dir, config.Overrides{
		Provider:              f.provider,
		Model:                 f.model,
		MaxConcurrentChapters: f.maxConcurrent,
	})
	if err != nil {
		return err
	}
	if mgr.ConfigFile() != "" {
		mgr.OnChange(func(*config.Config) {
			logger.Warn("config file changed; changes apply to the next run", "file", mgr.ConfigFile())
		})
		mgr.WatchConfig()
	}

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:   cfg.Tracing.Endpoint,
		SampleRate: cfg.Tracing.SampleRate,
		Enabled:    cfg.Tracing.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	opts := workflow.Options{
		Dir:         dir,
		Config:      cfg,
		Chapters:    workflow.ParseChapters(f.chapters),
		MetricsAddr: f.metricsAddr,
		Logger:      logger,
	}
	if !api.IsStructuredOutput() {
		fmt.Printf("%s %s %s\n", titleStyle.Render(dir.Name()), dimStyle.Render("model"), cfg.Model)
		if f.metricsAddr != "" {
			fmt.Println(dimStyle.Render("Monitoring on http://" + f.metricsAddr))
		}
		opts.Console = newConsole(os.Stdout)
	}

	report, err := run(ctx, opts)
	if errors.Is(err, state.ErrNoState) {
		return fmt.Errorf("no saved progress for %s; run generate first", dir.Path())
	}
	if err != nil {
		return err
	}

	if api.IsStructuredOutput() {
		return api.Output(report)
	}
	printReport(report, dir)

	if ctx.Err() != nil {
		return errors.New("interrupted; progress saved, run resume to continue")
	}
	return nil
}

func printReport(r *workflow.Report, dir *bookdir.Dir) {
	fmt.Println()
	if len(r.Chapters) == 0 {
		fmt.Println(successStyle.Render("Nothing to do: every section is complete."))
	}
	if r.Reinitialized {
		fmt.Println(dimStyle.Render("Started from a fresh state."))
	}
	if r.State != nil {
		printProgress(os.Stdout, r.State)
	}
	if r.Metrics.Count > 0 {
		fmt.Printf("%s %d calls, %d tokens, p50 %.1fs, p95 %.1fs\n",
			titleStyle.Render("Usage:"), r.Metrics.Count, r.Metrics.TotalTokens,
			r.Metrics.LatencyP50, r.Metrics.LatencyP95)
	}
	if r.Progress.Failed > 0 || r.Progress.Pending > 0 || r.Progress.InProgress > 0 {
		fmt.Println(warnStyle.Render("Some sections are unfinished. Run: bookwriter resume " + dir.Path()))
	} else if r.Progress.TotalSections > 0 {
		fmt.Println(dimStyle.Render("Chapters written to " + dir.ChaptersPath()))
	}
}
