package metrics

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
)

func emitRun(r *Recorder) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []progress.Event{
		{ChapterID: "1", Kind: progress.KindStarted, Time: now},
		{ChapterID: "1", SectionID: "1.1", Kind: progress.KindCompleted, Tokens: 100, Duration: 2, Time: now},
		{ChapterID: "1", SectionID: "1.2", Kind: progress.KindCompleted, Tokens: 300, Duration: 4, Time: now},
		{ChapterID: "1", Kind: progress.KindChapterCompleted, Time: now},
		{ChapterID: "2", Kind: progress.KindStarted, Time: now},
		{ChapterID: "2", SectionID: "2.1", Kind: progress.KindFailed, ErrorClass: "rate_limited", Message: "429", Time: now},
		{ChapterID: "2", Kind: progress.KindChapterStopped, Time: now},
		{ChapterID: "3", Kind: progress.KindSkipped, Time: now},
	}
	for _, e := range events {
		r.Emit(e)
	}
}

func TestRecorder_Series(t *testing.T) {
	r := NewRecorder("mock", "test-model")
	emitRun(r)

	if got := testutil.ToFloat64(r.sections.WithLabelValues("completed", "")); got != 2 {
		t.Errorf("completed sections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.sections.WithLabelValues("failed", "rate_limited")); got != 1 {
		t.Errorf("failed sections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.tokens); got != 400 {
		t.Errorf("tokens = %v, want 400", got)
	}
	if got := testutil.ToFloat64(r.inProgress); got != 0 {
		t.Errorf("chapters in progress = %v, want 0", got)
	}
	for outcome, want := range map[string]float64{"completed": 1, "stopped": 1, "skipped": 1} {
		if got := testutil.ToFloat64(r.chapters.WithLabelValues(outcome)); got != want {
			t.Errorf("chapters{%s} = %v, want %v", outcome, got, want)
		}
	}
}

func TestRecorder_Summary(t *testing.T) {
	r := NewRecorder("mock", "test-model")
	emitRun(r)

	s := r.Summary()
	if s.Count != 3 || s.SuccessCount != 2 || s.ErrorCount != 1 {
		t.Fatalf("Summary() counts = %+v", s)
	}
	if s.TotalTokens != 400 {
		t.Errorf("TotalTokens = %d, want 400", s.TotalTokens)
	}
	if s.LatencyP50 != 3 {
		t.Errorf("LatencyP50 = %v, want 3", s.LatencyP50)
	}
	if s.LatencyMax != 4 {
		t.Errorf("LatencyMax = %v, want 4", s.LatencyMax)
	}
	if s.Errors["rate_limited"] != 1 {
		t.Errorf("Errors = %v", s.Errors)
	}

	byChapter := ByChapter(r.Metrics())
	if byChapter["1"].SuccessCount != 2 || byChapter["2"].ErrorCount != 1 {
		t.Errorf("ByChapter() = %+v", byChapter)
	}
	for _, m := range r.Metrics() {
		if m.Provider != "mock" || m.Model != "test-model" {
			t.Errorf("metric labels = %q/%q", m.Provider, m.Model)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Count != 0 || s.AvgTokens != 0 || s.Errors != nil {
		t.Errorf("Summarize(nil) = %+v", s)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{100, 5},
		{25, 2},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestRecorder_Export(t *testing.T) {
	r := NewRecorder("mock", "test-model")
	emitRun(r)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "bookwriter_generator_tokens_total") {
		t.Errorf("textfile missing tokens series:\n%s", data)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bookwriter_generator_sections_total") {
		t.Errorf("handler missing sections series:\n%s", rec.Body.String())
	}
}
