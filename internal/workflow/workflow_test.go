package workflow

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/providers"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/testutil"
)

func newBook(t *testing.T) *bookdir.Dir {
	t.Helper()
	d, err := bookdir.Create(t.TempDir()+"/book", "Workflow Book", "test-model")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return d
}

func options(d *bookdir.Dir, client providers.LLMClient) Options {
	cfg := config.DefaultConfig()
	cfg.Model = "test-model"
	return Options{Dir: d, Config: cfg, Client: client, Logger: testutil.Logger()}
}

func TestGenerate_WritesArtifacts(t *testing.T) {
	d := newBook(t)
	client := providers.NewMockClient()
	var events []progress.Event
	opts := options(d, client)
	opts.Console = progress.Func(func(e progress.Event) { events = append(events, e) })

	report, err := Generate(context.Background(), opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !report.Reinitialized {
		t.Error("Reinitialized = false on first run")
	}
	if report.Progress.TotalSections != 2 || report.Progress.Completed != 2 {
		t.Errorf("progress = %+v, want 2/2", report.Progress)
	}
	if report.Metrics.SuccessCount != 2 {
		t.Errorf("metrics = %+v, want 2 successes", report.Metrics)
	}
	if client.RequestCount() != 2 {
		t.Errorf("requests = %d, want 2", client.RequestCount())
	}

	for _, path := range []string{d.EventsPath(), d.MetricsPath(), d.ChaptersPath() + "/chapter_01.md"} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", path, err)
		}
	}
	logged, err := progress.ReadEvents(d.EventsPath())
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(logged) != len(events) {
		t.Errorf("event log has %d events, console saw %d", len(logged), len(events))
	}
}

func TestGenerate_SecondRunMakesNoCalls(t *testing.T) {
	d := newBook(t)
	ctx := context.Background()
	if _, err := Generate(ctx, options(d, providers.NewMockClient())); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	client := providers.NewMockClient()
	report, err := Generate(ctx, options(d, client))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if report.Reinitialized {
		t.Error("Reinitialized = true with unchanged rubric")
	}
	if client.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", client.RequestCount())
	}
}

func TestGenerate_RubricEditReinitializes(t *testing.T) {
	d := newBook(t)
	ctx := context.Background()
	if _, err := Generate(ctx, options(d, providers.NewMockClient())); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	f, err := os.OpenFile(d.RubricPath(), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	f.WriteString("\n## 1.3 Third Section\n\nMore.\n")
	f.Close()

	client := providers.NewMockClient()
	report, err := Generate(ctx, options(d, client))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !report.Reinitialized {
		t.Error("Reinitialized = false after rubric edit")
	}
	if client.RequestCount() != 3 {
		t.Errorf("requests = %d, want 3 (all sections regenerated)", client.RequestCount())
	}
}

func TestResume_NoState(t *testing.T) {
	d := newBook(t)
	_, err := Resume(context.Background(), options(d, providers.NewMockClient()))
	if !errors.Is(err, state.ErrNoState) {
		t.Fatalf("Resume() error = %v, want ErrNoState", err)
	}
}

func TestResume_RetriesFailedSections(t *testing.T) {
	d := newBook(t)
	ctx := context.Background()

	failing := providers.NewMockClient()
	failing.Errors = []error{&providers.APIError{Provider: "mock", StatusCode: 401, Class: providers.ErrAuthentication, Message: "bad key"}}
	report, err := Generate(ctx, options(d, failing))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if report.Progress.Failed != 1 || report.Progress.Completed != 0 {
		t.Fatalf("progress = %+v, want 1 failed and nothing completed", report.Progress)
	}
	if failing.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (fail-stop)", failing.RequestCount())
	}

	client := providers.NewMockClient()
	report, err = Resume(ctx, options(d, client))
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if report.Pending != 2 {
		t.Errorf("Pending = %d, want 2", report.Pending)
	}
	if report.Progress.Completed != 2 || report.Progress.Failed != 0 {
		t.Errorf("progress = %+v, want all completed", report.Progress)
	}
	if !slices.Equal(report.Chapters, []string{"1"}) {
		t.Errorf("Chapters = %v, want [1]", report.Chapters)
	}

	// Nothing left: no calls.
	idle := providers.NewMockClient()
	report, err = Resume(ctx, options(d, idle))
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(report.Chapters) != 0 || idle.RequestCount() != 0 {
		t.Errorf("idle resume ran chapters %v with %d requests", report.Chapters, idle.RequestCount())
	}
}

func TestResume_ChapterFilter(t *testing.T) {
	d := newBook(t)
	ctx := context.Background()
	failing := providers.NewMockClient()
	failing.Errors = []error{&providers.APIError{Provider: "mock", Class: providers.ErrMalformedResponse}}
	if _, err := Generate(ctx, options(d, failing)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	client := providers.NewMockClient()
	opts := options(d, client)
	opts.Chapters = []string{"2"}
	report, err := Resume(ctx, opts)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if client.RequestCount() != 0 || len(report.Chapters) != 0 {
		t.Errorf("filtered resume touched chapters %v", report.Chapters)
	}
}

func TestResume_RubricChanged(t *testing.T) {
	d := newBook(t)
	ctx := context.Background()
	if _, err := Generate(ctx, options(d, providers.NewMockClient())); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if err := os.WriteFile(d.RubricPath(), []byte("# Other\n\n# Chapter 1: X\n\n## 1.1 Y\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Resume(ctx, options(d, providers.NewMockClient())); !errors.Is(err, ErrRubricChanged) {
		t.Fatalf("Resume() error = %v, want ErrRubricChanged", err)
	}
}

func TestGenerate_WithMonitor(t *testing.T) {
	d := newBook(t)
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	opts := options(d, providers.NewMockClient())
	opts.MetricsAddr = "127.0.0.1:" + port

	if _, err := Generate(context.Background(), opts); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGenerate_InvalidDir(t *testing.T) {
	opts := options(bookdir.New(t.TempDir()+"/missing"), providers.NewMockClient())
	if _, err := Generate(context.Background(), opts); err == nil {
		t.Fatal("Generate() error = nil, want error")
	}
}

func TestParseChapters(t *testing.T) {
	got := ParseChapters(" 1, 2,,appendix_a, 1 ")
	want := []string{"1", "2", "appendix_a"}
	if !slices.Equal(got, want) {
		t.Errorf("ParseChapters() = %v, want %v", got, want)
	}
	if got := ParseChapters(""); got != nil {
		t.Errorf("ParseChapters(\"\") = %v, want nil", got)
	}
}
