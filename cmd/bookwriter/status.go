package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/server/endpoints"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status <book-dir>",
	Short: "Show generation progress from the saved state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := bookdir.New(args[0])
		if err := dir.Validate(); err != nil {
			return err
		}

		store, err := state.NewFileStore(dir.OutputPath(), logger)
		if err != nil {
			return err
		}
		st, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("no saved progress for %s; run generate first", dir.Path())
		}

		if api.IsStructuredOutput() {
			return api.Output(endpoints.BuildStatus(st))
		}

		fmt.Printf("%s %s %s\n", titleStyle.Render(dir.Name()), dimStyle.Render("model"), st.Model)
		printProgress(os.Stdout, st)
		printFailures(st)
		if statusEvents > 0 {
			printRecentEvents(dir, statusEvents)
		}
		return nil
	},
}

var statusEvents int

func init() {
	statusCmd.Flags().IntVar(&statusEvents, "events", 5, "recent events from events.jsonl to show (0 hides them)")
	rootCmd.AddCommand(statusCmd)
}

func printRecentEvents(dir *bookdir.Dir, n int) {
	events, err := progress.ReadEvents(dir.EventsPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to read event log", "error", err)
		}
		return
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		return
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("Recent activity"))
	for _, e := range events {
		line := consoleLine(e)
		if line == "" {
			continue
		}
		fmt.Printf("%s %s\n", dimStyle.Render(e.Time.Local().Format("15:04:05")), strings.TrimSpace(line))
	}
}

func printFailures(st *state.BookState) {
	var failed []state.SectionRef
	for _, ref := range state.PendingSections(st) {
		ch, _ := st.Chapter(ref.ChapterID)
		if ch.Sections[ref.SectionID].Status == state.SectionFailed {
			failed = append(failed, ref)
		}
	}
	if len(failed) == 0 {
		return
	}

	t := newTable("Section", "Retries", "Last error")
	for _, ref := range failed {
		ch, _ := st.Chapter(ref.ChapterID)
		sec := ch.Sections[ref.SectionID]
		t.Row(ref.SectionID, fmt.Sprint(sec.RetryCount), truncate(sec.LastError, 60))
	}
	fmt.Println()
	fmt.Println(errorStyle.Render("Failed sections"))
	fmt.Println(t)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
