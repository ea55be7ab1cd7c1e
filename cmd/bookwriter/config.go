package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
)

var configBook string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after defaults, the global config
file, BOOKWRITER_* environment variables and, with --book, the book's
config.yaml have been applied.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		if configBook != "" {
			book, err := bookdir.New(configBook).Config()
			if err != nil {
				return err
			}
			cfg = config.Resolve(cfg, book, config.Overrides{})
		}

		entries := config.Entries(cfg)
		if len(args) == 1 {
			e := config.GetEntry(cfg, args[0])
			if e == nil {
				return fmt.Errorf("unknown config key %q", args[0])
			}
			entries = []config.Entry{*e}
		}

		if api.IsStructuredOutput() {
			return api.Output(entries)
		}
		source := mgr.ConfigFile()
		if source == "" {
			source = "defaults and environment"
		}
		fmt.Println(dimStyle.Render("Source: " + source))
		t := newTable("Key", "Value", "Description")
		for _, e := range entries {
			t.Row(e.Key, fmt.Sprint(e.Value), dimStyle.Render(e.Description))
		}
		fmt.Println(t)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Wrote " + path))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		if mgr.ConfigFile() == "" {
			fmt.Println(dimStyle.Render("no config file found; using defaults and environment"))
			return nil
		}
		fmt.Println(mgr.ConfigFile())
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configBook, "book", "", "also apply this book directory's config.yaml")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
