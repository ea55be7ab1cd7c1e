package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/providers"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

// testOutline builds a book with n numbered chapters of m sections each.
// Section titles are "<chapter>.<k> S<chapter>.<k>".
func testOutline(n, m int) *types.Outline {
	o := &types.Outline{Title: "Test Book"}
	for c := 1; c <= n; c++ {
		num := c
		ch := types.Chapter{ID: fmt.Sprint(c), Number: &num, Title: fmt.Sprintf("Chapter %d", c)}
		for s := 1; s <= m; s++ {
			id := fmt.Sprintf("%d.%d", c, s)
			ch.Sections = append(ch.Sections, types.Section{
				ID:             id,
				Title:          id + " S" + id,
				HeadingLevel:   2,
				OutlineContent: "Brief for " + id,
			})
		}
		o.Chapters = append(o.Chapters, ch)
	}
	return o
}

// sectionTitle extracts the section title from a section prompt.
func sectionTitle(req *providers.ChatRequest) string {
	const marker = `Write the content for section "`
	for _, m := range req.Messages {
		if m.Role != providers.RoleUser {
			continue
		}
		i := strings.Index(m.Content, marker)
		if i < 0 {
			continue
		}
		rest := m.Content[i+len(marker):]
		if j := strings.Index(rest, `"`); j >= 0 {
			return rest[:j]
		}
	}
	return ""
}

// sectionID returns the id prefix of a test section title.
func sectionID(req *providers.ChatRequest) string {
	id, _, _ := strings.Cut(sectionTitle(req), " ")
	return id
}

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds(chapterID string) []progress.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Kind
	for _, e := range r.events {
		if e.ChapterID == chapterID {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (r *recorder) count(kind progress.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	gen       *Generator
	store     *state.Store
	client    *providers.MockClient
	events    *recorder
	outputDir string
}

func newHarness(t *testing.T, outline *types.Outline, limit int, handler func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error)) *harness {
	t.Helper()
	ctx := context.Background()

	store := state.NewStore(state.NewMemoryBackend(), nil)
	if _, err := store.Initialize(ctx, outline, "test-model", "fp"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	client := providers.NewMockClient()
	if handler != nil {
		client.Handler = handler
	} else {
		client.Handler = func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
			return &providers.ChatResult{Content: "Content of " + sectionID(req), TotalTokens: 10}, nil
		}
	}

	events := &recorder{}
	outputDir := t.TempDir()
	gen, err := New(Config{
		Outline:               outline,
		Store:                 store,
		Client:                client,
		OutputDir:             outputDir,
		Model:                 "test-model",
		MaxConcurrentChapters: limit,
		Sink:                  events,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{gen: gen, store: store, client: client, events: events, outputDir: outputDir}
}

func TestNew_Validation(t *testing.T) {
	store := state.NewStore(state.NewMemoryBackend(), nil)
	client := providers.NewMockClient()
	outline := testOutline(1, 1)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no outline", Config{Store: store, Client: client, OutputDir: "out"}},
		{"no store", Config{Outline: outline, Client: client, OutputDir: "out"}},
		{"no client", Config{Outline: outline, Store: store, OutputDir: "out"}},
		{"no output dir", Config{Outline: outline, Store: store, Client: client}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() should fail")
			}
		})
	}

	g, err := New(Config{Outline: outline, Store: store, Client: client, OutputDir: "out"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.limit != DefaultMaxConcurrentChapters {
		t.Errorf("limit = %d, want %d", g.limit, DefaultMaxConcurrentChapters)
	}
}

func TestGenerateBook_CompletesEveryChapter(t *testing.T) {
	h := newHarness(t, testOutline(3, 2), 2, nil)

	final, err := h.gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}

	for _, id := range []string{"1", "2", "3"} {
		ch := final.Chapters[id]
		if ch.Status != state.ChapterCompleted {
			t.Errorf("chapter %s status = %s, want completed", id, ch.Status)
		}
		if ch.CompletedAt == nil || ch.StartedAt == nil {
			t.Errorf("chapter %s timestamps not set", id)
		}
		for sid, sec := range ch.Sections {
			if sec.GeneratedContent != "Content of "+sid {
				t.Errorf("section %s content = %q", sid, sec.GeneratedContent)
			}
			if sec.TokenCount != 10 {
				t.Errorf("section %s tokens = %d, want 10", sid, sec.TokenCount)
			}
		}
	}

	if got := h.client.RequestCount(); got != 6 {
		t.Errorf("RequestCount() = %d, want 6", got)
	}

	want := []progress.Kind{
		progress.KindStarted,
		progress.KindGenerating, progress.KindCompleted,
		progress.KindGenerating, progress.KindCompleted,
		progress.KindChapterCompleted,
	}
	got := h.events.kinds("2")
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("chapter 2 events = %v, want %v", got, want)
	}

	data, err := os.ReadFile(filepath.Join(h.outputDir, ChaptersDir, "chapter_02.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	wantFile := "# Chapter 2: Chapter 2\n\n## 2.1 S2.1\n\nContent of 2.1\n\n## 2.2 S2.2\n\nContent of 2.2\n"
	if string(data) != wantFile {
		t.Errorf("chapter file =\n%q\nwant\n%q", data, wantFile)
	}
}

func TestGenerateBook_IdempotentResume(t *testing.T) {
	h := newHarness(t, testOutline(2, 2), 2, nil)
	ctx := context.Background()

	if _, err := h.gen.GenerateBook(ctx, nil); err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	h.client.Reset()
	before, err := h.store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	final, err := h.gen.GenerateBook(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	before.UpdatedAt = time.Time{}
	final.UpdatedAt = time.Time{}
	if !reflect.DeepEqual(before, final) {
		t.Errorf("second run changed state:\nbefore = %+v\nafter  = %+v", before, final)
	}
	if got := h.client.RequestCount(); got != 0 {
		t.Errorf("second run made %d requests, want 0", got)
	}
	if got := h.events.count(progress.KindSkipped); got != 2 {
		t.Errorf("skipped events = %d, want 2", got)
	}
	if op := state.GetOverallProgress(final); op.Completed != 4 {
		t.Errorf("completed sections = %d, want 4", op.Completed)
	}
}

func TestGenerateBook_ResumesFromCompletedSections(t *testing.T) {
	h := newHarness(t, testOutline(1, 3), 1, nil)
	ctx := context.Background()

	if _, err := h.store.UpdateSection(ctx, "1", "1.1", state.SectionUpdate{Status: state.SectionCompleted, Content: "A"}); err != nil {
		t.Fatalf("UpdateSection() error = %v", err)
	}

	if _, err := h.gen.GenerateBook(ctx, nil); err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}

	reqs := h.client.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if id := sectionID(&reqs[0]); id != "1.2" {
		t.Errorf("first request for section %q, want 1.2", id)
	}
	// The stored section seeds the context of the next one.
	if prompt := h.client.LastUserMessage(`section "1.2 S1.2"`); !strings.Contains(prompt, "### 1.1 S1.1\n\nA") {
		t.Errorf("section 1.2 prompt missing prior content:\n%s", prompt)
	}
	if prompt := h.client.LastUserMessage(`section "1.3 S1.3"`); !strings.Contains(prompt, "Content of 1.2") {
		t.Errorf("section 1.3 prompt missing section 1.2 content:\n%s", prompt)
	}
}

func TestGenerateBook_FailStop(t *testing.T) {
	h := newHarness(t, testOutline(2, 3), 2, func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		id := sectionID(req)
		if id == "1.2" {
			return nil, &providers.APIError{Provider: "mock", StatusCode: 400, Class: providers.ErrBadRequest, Message: "bad prompt"}
		}
		return &providers.ChatResult{Content: "Content of " + id}, nil
	})

	final, err := h.gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}

	ch1 := final.Chapters["1"]
	if ch1.Status != state.ChapterPartial {
		t.Errorf("chapter 1 status = %s, want partial", ch1.Status)
	}
	if s := ch1.Sections["1.1"].Status; s != state.SectionCompleted {
		t.Errorf("1.1 status = %s", s)
	}
	sec := ch1.Sections["1.2"]
	if sec.Status != state.SectionFailed || sec.RetryCount != 1 || !strings.Contains(sec.LastError, "bad prompt") {
		t.Errorf("1.2 = %+v, want failed with error", sec)
	}
	if s := ch1.Sections["1.3"].Status; s != state.SectionPending {
		t.Errorf("1.3 status = %s, want pending", s)
	}
	if h.client.LastUserMessage(`section "1.3 S1.3"`) != "" {
		t.Error("section 1.3 was requested after 1.2 failed")
	}

	if final.Chapters["2"].Status != state.ChapterCompleted {
		t.Errorf("chapter 2 status = %s, want completed", final.Chapters["2"].Status)
	}

	for _, e := range h.events.events {
		if e.Kind == progress.KindFailed && e.ErrorClass != "bad_request" {
			t.Errorf("failed event class = %q, want bad_request", e.ErrorClass)
		}
	}
	kinds := h.events.kinds("1")
	if kinds[len(kinds)-1] != progress.KindChapterStopped {
		t.Errorf("chapter 1 events = %v, want trailing chapter_stopped", kinds)
	}

	data, err := os.ReadFile(filepath.Join(h.outputDir, ChaptersDir, "chapter_01.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{incompleteNotice, "Content of 1.1", "> **Generation failed**:", pendingNotice} {
		if !strings.Contains(string(data), want) {
			t.Errorf("partial chapter file missing %q:\n%s", want, data)
		}
	}
}

func TestGenerateBook_EmptyContentFailsSection(t *testing.T) {
	h := newHarness(t, testOutline(1, 2), 1, func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		id := sectionID(req)
		if id == "1.1" {
			return &providers.ChatResult{Content: "  \n", TotalTokens: 5}, nil
		}
		return &providers.ChatResult{Content: "Content of " + id}, nil
	})

	final, err := h.gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}

	ch1 := final.Chapters["1"]
	if ch1.Status == state.ChapterCompleted {
		t.Errorf("chapter 1 status = %s, want not completed", ch1.Status)
	}
	sec := ch1.Sections["1.1"]
	if sec.Status != state.SectionFailed || sec.RetryCount != 1 || sec.GeneratedContent != "" {
		t.Errorf("1.1 = %+v, want failed without content", sec)
	}
	if got := h.client.RequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}

	var failed int
	for _, e := range h.events.events {
		if e.Kind != progress.KindFailed {
			continue
		}
		failed++
		if e.ErrorClass != "malformed_response" {
			t.Errorf("failed event class = %q, want malformed_response", e.ErrorClass)
		}
	}
	if failed != 1 {
		t.Errorf("failed events = %d, want 1", failed)
	}
	kinds := h.events.kinds("1")
	if kinds[len(kinds)-1] != progress.KindChapterStopped {
		t.Errorf("chapter 1 events = %v, want trailing chapter_stopped", kinds)
	}
}

func TestGenerateBook_SectionMissingFromState(t *testing.T) {
	h := newHarness(t, testOutline(1, 1), 1, nil)

	// The outline grew a section the saved state never saw.
	outline := testOutline(1, 2)
	gen, err := New(Config{
		Outline:               outline,
		Store:                 h.store,
		Client:                h.client,
		OutputDir:             h.outputDir,
		Model:                 "test-model",
		MaxConcurrentChapters: 1,
		Sink:                  h.events,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	final, err := gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if got := h.client.RequestCount(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
	if final.Chapters["1"].Status == state.ChapterCompleted {
		t.Error("chapter 1 marked completed with a section missing from state")
	}
	if got := h.events.count(progress.KindChapterCompleted); got != 0 {
		t.Errorf("chapter_completed events = %d, want 0", got)
	}

	var stopped *progress.Event
	for i := range h.events.events {
		if h.events.events[i].Kind == progress.KindChapterStopped {
			stopped = &h.events.events[i]
		}
	}
	if stopped == nil {
		t.Fatalf("no chapter_stopped event in %v", h.events.kinds("1"))
	}
	if stopped.SectionID != "1.2" || !strings.Contains(stopped.Message, state.ErrNotFound.Error()) {
		t.Errorf("chapter_stopped = %+v, want section 1.2 not found", stopped)
	}
}

func TestGenerateBook_RetryAfterReset(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	h := newHarness(t, testOutline(1, 2), 1, func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		if fail.Load() && sectionID(req) == "1.1" {
			return nil, fmt.Errorf("503 after retries: %w", providers.ErrServer)
		}
		return &providers.ChatResult{Content: "ok " + sectionID(req)}, nil
	})
	ctx := context.Background()

	first, err := h.gen.GenerateBook(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if first.Chapters["1"].Status != state.ChapterFailed {
		t.Fatalf("chapter status = %s, want failed", first.Chapters["1"].Status)
	}

	if _, err := h.store.ResetFailedSections(ctx); err != nil {
		t.Fatalf("ResetFailedSections() error = %v", err)
	}
	fail.Store(false)

	final, err := h.gen.GenerateBook(ctx, []string{"1"})
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	ch := final.Chapters["1"]
	if ch.Status != state.ChapterCompleted {
		t.Errorf("chapter status = %s, want completed", ch.Status)
	}
	if sec := ch.Sections["1.1"]; sec.RetryCount != 0 || sec.LastError != "" {
		t.Errorf("1.1 after reset = %+v", sec)
	}
}

func TestGenerateBook_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	h := newHarness(t, testOutline(5, 2), 2, func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return &providers.ChatResult{Content: "x"}, nil
	})

	final, err := h.gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if got := peak.Load(); got != 2 {
		t.Errorf("peak concurrent requests = %d, want 2", got)
	}
	if got := state.GetOverallProgress(final).Completed; got != 10 {
		t.Errorf("completed = %d, want 10", got)
	}
}

func TestGenerateBook_WorkerPanicIsIsolated(t *testing.T) {
	h := newHarness(t, testOutline(3, 2), 3, func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		id := sectionID(req)
		if id == "2.1" {
			panic("unexpected nil")
		}
		return &providers.ChatResult{Content: "Content of " + id}, nil
	})

	final, err := h.gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}

	ch2 := final.Chapters["2"]
	if ch2.Status != state.ChapterFailed {
		t.Errorf("chapter 2 status = %s, want failed", ch2.Status)
	}
	if sec := ch2.Sections["2.1"]; sec.Status != state.SectionFailed || !strings.Contains(sec.LastError, "panic") {
		t.Errorf("2.1 = %+v, want failed with panic", sec)
	}
	for _, id := range []string{"1", "3"} {
		if s := final.Chapters[id].Status; s != state.ChapterCompleted {
			t.Errorf("chapter %s status = %s, want completed", id, s)
		}
	}
}

func TestGenerateBook_UnexpectedErrorType(t *testing.T) {
	h := newHarness(t, testOutline(2, 1), 2, func(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		if sectionID(req) == "1.1" {
			return nil, errors.New("something odd")
		}
		return &providers.ChatResult{Content: "fine"}, nil
	})

	final, err := h.gen.GenerateBook(context.Background(), nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if s := final.Chapters["1"].Status; s != state.ChapterFailed {
		t.Errorf("chapter 1 status = %s, want failed", s)
	}
	if s := final.Chapters["2"].Status; s != state.ChapterCompleted {
		t.Errorf("chapter 2 status = %s, want completed", s)
	}
}

func TestGenerateBook_CancelLeavesSectionInProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, testOutline(1, 2), 1, func(c context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
		if sectionID(req) == "1.2" {
			cancel()
			return nil, c.Err()
		}
		return &providers.ChatResult{Content: "done"}, nil
	})

	final, err := h.gen.GenerateBook(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	ch := final.Chapters["1"]
	if s := ch.Sections["1.1"].Status; s != state.SectionCompleted {
		t.Errorf("1.1 status = %s, want completed", s)
	}
	sec := ch.Sections["1.2"]
	if sec.Status != state.SectionInProgress || sec.RetryCount != 0 {
		t.Errorf("1.2 = %+v, want in_progress without retry", sec)
	}
	if ch.Status != state.ChapterInProgress {
		t.Errorf("chapter status = %s, want in_progress", ch.Status)
	}
	if got := h.events.count(progress.KindFailed); got != 0 {
		t.Errorf("failed events = %d, want 0", got)
	}

	refs := state.PendingSections(final)
	if len(refs) != 1 || refs[0].SectionID != "1.2" {
		t.Errorf("PendingSections() = %v, want [1 1.2]", refs)
	}
}

func TestGenerateBook_ChapterFilter(t *testing.T) {
	h := newHarness(t, testOutline(3, 1), 2, nil)

	final, err := h.gen.GenerateBook(context.Background(), []string{"2", "nope", "2"})
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if got := h.client.RequestCount(); got != 1 {
		t.Errorf("RequestCount() = %d, want 1", got)
	}
	if s := final.Chapters["2"].Status; s != state.ChapterCompleted {
		t.Errorf("chapter 2 status = %s", s)
	}
	for _, id := range []string{"1", "3"} {
		if s := final.Chapters[id].Status; s != state.ChapterPending {
			t.Errorf("chapter %s status = %s, want pending", id, s)
		}
	}
}

func TestGenerateBook_EmptyChapterSettles(t *testing.T) {
	outline := testOutline(1, 1)
	outline.Appendices = []types.Chapter{{ID: types.AppendixID("a"), Title: "Notes"}}
	h := newHarness(t, outline, 2, nil)
	ctx := context.Background()

	final, err := h.gen.GenerateBook(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if s := final.Chapters["appendix_a"].Status; s != state.ChapterCompleted {
		t.Errorf("appendix status = %s, want completed", s)
	}
	if _, err := os.Stat(filepath.Join(h.outputDir, ChaptersDir, "appendix_a.md")); err != nil {
		t.Errorf("appendix file not written: %v", err)
	}
}

func TestGenerateBook_NoState(t *testing.T) {
	gen, err := New(Config{
		Outline:   testOutline(1, 1),
		Store:     state.NewStore(state.NewMemoryBackend(), nil),
		Client:    providers.NewMockClient(),
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := gen.GenerateBook(context.Background(), nil); !errors.Is(err, state.ErrNoState) {
		t.Errorf("GenerateBook() error = %v, want ErrNoState", err)
	}
}

func TestGenerateBook_StoreFailureIsContained(t *testing.T) {
	outline := testOutline(2, 1)
	backend := state.NewMemoryBackend()
	store := state.NewStore(backend, nil)
	ctx := context.Background()
	if _, err := store.Initialize(ctx, outline, "m", "fp"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	backend.WriteErr = errors.New("disk full")

	gen, err := New(Config{
		Outline:               outline,
		Store:                 store,
		Client:                providers.NewMockClient(),
		OutputDir:             t.TempDir(),
		MaxConcurrentChapters: 2,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	final, err := gen.GenerateBook(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateBook() error = %v", err)
	}
	if op := state.GetOverallProgress(final); op.Pending != 2 {
		t.Errorf("pending = %d, want 2 (nothing persisted)", op.Pending)
	}
}
