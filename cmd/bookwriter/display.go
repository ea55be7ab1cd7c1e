package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// console prints progress events as one line each. Emit is called from
// several chapter workers, so writes are serialized.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Emit(e progress.Event) {
	line := consoleLine(e)
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

func consoleLine(e progress.Event) string {
	name := types.DisplayName(e.ChapterID)
	switch e.Kind {
	case progress.KindStarted:
		return titleStyle.Render("Starting " + name)
	case progress.KindSkipped:
		return dimStyle.Render(name + ": " + e.Message)
	case progress.KindGenerating:
		return dimStyle.Render(fmt.Sprintf("  Generating %s...", e.SectionID))
	case progress.KindCompleted:
		return successStyle.Render(fmt.Sprintf("  %s completed", e.SectionID)) +
			dimStyle.Render(fmt.Sprintf(" (%d tokens, %.1fs)", e.Tokens, e.Duration))
	case progress.KindFailed:
		return errorStyle.Render(fmt.Sprintf("  %s failed: %s", e.SectionID, e.Message))
	case progress.KindChapterCompleted:
		return successStyle.Render(name + " completed")
	case progress.KindChapterStopped:
		return warnStyle.Render(fmt.Sprintf("Stopped %s: %s", name, e.Message))
	}
	return ""
}

var _ progress.Sink = (*console)(nil)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func statusStyle(s state.ChapterStatus) lipgloss.Style {
	switch s {
	case state.ChapterCompleted:
		return successStyle
	case state.ChapterPartial, state.ChapterInProgress:
		return warnStyle
	case state.ChapterFailed:
		return errorStyle
	}
	return dimStyle
}

// printProgress renders a per-chapter status table and an overall line.
func printProgress(w io.Writer, st *state.BookState) {
	t := newTable("Chapter", "Status", "Done", "Failed", "Pending")
	for _, id := range state.SortedChapterIDs(st) {
		ch, _ := st.Chapter(id)
		p := state.GetChapterProgress(st, id)
		t.Row(
			types.DisplayName(id),
			statusStyle(ch.Status).Render(string(ch.Status)),
			fmt.Sprintf("%d/%d", p.Completed, p.Total),
			fmt.Sprint(p.Failed),
			fmt.Sprint(p.Pending+p.InProgress),
		)
	}
	fmt.Fprintln(w, t)

	overall := state.GetOverallProgress(st)
	fmt.Fprintf(w, "%s %d/%d sections (%.1f%%)",
		titleStyle.Render("Overall:"), overall.Completed, overall.TotalSections, overall.Percent())
	if overall.Failed > 0 {
		fmt.Fprint(w, errorStyle.Render(fmt.Sprintf(", %d failed", overall.Failed)))
	}
	fmt.Fprintln(w)
}
