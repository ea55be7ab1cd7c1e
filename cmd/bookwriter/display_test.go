package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
)

func TestConsoleLine(t *testing.T) {
	tests := []struct {
		event progress.Event
		want  string
	}{
		{progress.Event{ChapterID: "1", Kind: progress.KindStarted}, "Starting Chapter 1"},
		{progress.Event{ChapterID: "1", SectionID: "1.2", Kind: progress.KindGenerating}, "Generating 1.2..."},
		{progress.Event{ChapterID: "1", SectionID: "1.2", Kind: progress.KindCompleted, Tokens: 42}, "1.2 completed"},
		{progress.Event{ChapterID: "1", SectionID: "1.2", Kind: progress.KindFailed, Message: "boom"}, "1.2 failed: boom"},
		{progress.Event{ChapterID: "appendix_a", Kind: progress.KindChapterStopped, Message: "section 2 failed"}, "Stopped Appendix A"},
		{progress.Event{ChapterID: "preface", Kind: progress.KindChapterCompleted}, "Preface completed"},
	}
	for _, tt := range tests {
		if got := consoleLine(tt.event); !strings.Contains(got, tt.want) {
			t.Errorf("consoleLine(%s) = %q, want it to contain %q", tt.event.Kind, got, tt.want)
		}
	}
}

func TestConsole_Emit(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)
	c.Emit(progress.Event{ChapterID: "2", Kind: progress.KindStarted})
	c.Emit(progress.Event{ChapterID: "2", Kind: progress.Kind("unknown")})

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("lines = %d, want 1: %q", got, buf.String())
	}
}

func TestPrintProgress(t *testing.T) {
	now := time.Now()
	st := &state.BookState{
		Model: "test-model",
		Chapters: map[string]*state.ChapterState{
			"1": {
				ChapterID: "1",
				Status:    state.ChapterPartial,
				Sections: map[string]*state.SectionState{
					"1.1": {SectionID: "1.1", Status: state.SectionCompleted, CompletedAt: &now},
					"1.2": {SectionID: "1.2", Status: state.SectionFailed, LastError: "boom"},
				},
			},
		},
	}

	var buf bytes.Buffer
	printProgress(&buf, st)
	out := buf.String()
	for _, want := range []string{"Chapter 1", "partial", "1/2", "1/2 sections (50.0%)", "1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
