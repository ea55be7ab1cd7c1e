package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
	"github.com/bgreenawald/non-fiction-book-writer/version"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	logFormat    string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "bookwriter",
	Short: "Generate non-fiction books chapter by chapter with an LLM",
	Long: `Bookwriter turns a markdown rubric into a full book manuscript.

Each chapter is generated section by section, with earlier sections of the
chapter passed to the model as context. Progress is saved after every
section, so an interrupted or partially failed run can be resumed.

Typical workflow:
  bookwriter init my-book --title "My Book"
  $EDITOR my-book/rubric.md
  bookwriter generate my-book
  bookwriter resume my-book          # retry failed sections
  bookwriter convert my-book --format both`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		api.SetOutputFormat(outputFormat)

		l, err := newLogger(logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)

		if err := config.LoadDotEnv(); err != nil {
			logger.Warn("failed to load .env", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bookwriter/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", string(api.DefaultOutput), "output format: table, yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "warn", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "text", "log format: text or json",
	)

	rootCmd.AddCommand(versionCmd)
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

// loadConfig resolves the effective configuration for a book: flags over
// the book's config.yaml over the global config and environment.
func loadConfig(dir *bookdir.Dir, o config.Overrides) (*config.Config, *config.Manager, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	book, err := dir.Config()
	if err != nil {
		return nil, nil, err
	}
	return config.Resolve(mgr.Get(), book, o), mgr, nil
}
