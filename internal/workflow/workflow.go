// Package workflow wires a book directory, its state store and a
// generation client into one generate or resume run.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
	"github.com/bgreenawald/non-fiction-book-writer/internal/generator"
	"github.com/bgreenawald/non-fiction-book-writer/internal/metrics"
	"github.com/bgreenawald/non-fiction-book-writer/internal/outline"
	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/prompts/section"
	"github.com/bgreenawald/non-fiction-book-writer/internal/providers"
	"github.com/bgreenawald/non-fiction-book-writer/internal/server"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/svcctx"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

// ErrRubricChanged is returned by Resume when the rubric no longer matches
// the persisted state. Generate reinitializes instead.
var ErrRubricChanged = errors.New("rubric changed since state was created; run generate to start over")

// Options configures a run.
type Options struct {
	Dir    *bookdir.Dir
	Config *config.Config

	// Client overrides the client built from Config.
	Client providers.LLMClient

	// Chapters limits the run to these chapter ids. Empty means all.
	Chapters []string

	// MetricsAddr starts the monitor server for the run when set.
	MetricsAddr string

	// Console receives events alongside the log, event file and metrics.
	Console progress.Sink
	Logger  *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	Title         string                `json:"title" yaml:"title"`
	Model         string                `json:"model" yaml:"model"`
	Reinitialized bool                  `json:"reinitialized" yaml:"reinitialized"`
	Chapters      []string              `json:"chapters" yaml:"chapters"`
	Pending       int                   `json:"pending_before" yaml:"pending_before"`
	Progress      state.OverallProgress `json:"progress" yaml:"progress"`
	Metrics       metrics.Summary       `json:"metrics" yaml:"metrics"`
	MetricsFile   string                `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`

	State *state.BookState `json:"-" yaml:"-"`
}

type run struct {
	opts    Options
	logger  *slog.Logger
	outline *types.Outline
	store   *state.Store
}

func prepare(opts Options) (*run, string, error) {
	if opts.Dir == nil || opts.Config == nil {
		return nil, "", errors.New("book directory and config are required")
	}
	if err := opts.Dir.Validate(); err != nil {
		return nil, "", err
	}
	if err := opts.Dir.EnsureOutput(); err != nil {
		return nil, "", err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ol, fingerprint, err := outline.Load(opts.Dir.RubricPath())
	if err != nil {
		return nil, "", err
	}
	store, err := state.NewFileStore(opts.Dir.OutputPath(), logger)
	if err != nil {
		return nil, "", err
	}
	return &run{opts: opts, logger: logger, outline: ol, store: store}, fingerprint, nil
}

// Generate loads or initializes state for the book and generates every
// unfinished section of the selected chapters. A rubric edit since the
// last run discards the old state.
func Generate(ctx context.Context, opts Options) (*Report, error) {
	r, fingerprint, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	st, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	reinit := state.ShouldReinitialize(st, fingerprint)
	if reinit {
		if st != nil {
			r.logger.Warn("rubric changed, reinitializing state")
		}
		if _, err := r.store.Initialize(ctx, r.outline, opts.Config.Model, fingerprint); err != nil {
			return nil, err
		}
	} else {
		r.logger.Info("resuming from existing state")
	}

	report, err := r.execute(ctx, opts.Chapters)
	if report != nil {
		report.Reinitialized = reinit
	}
	return report, err
}

// Resume retries failed and unfinished sections. It needs existing state
// built from the current rubric. With nothing left to do it returns a
// report with no chapters and makes no calls.
func Resume(ctx context.Context, opts Options) (*Report, error) {
	r, fingerprint, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	st, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, state.ErrNoState
	}
	if state.ShouldReinitialize(st, fingerprint) {
		return nil, ErrRubricChanged
	}

	pending := state.PendingSections(st)
	if len(opts.Chapters) > 0 {
		pending = slices.DeleteFunc(pending, func(ref state.SectionRef) bool {
			return !slices.Contains(opts.Chapters, ref.ChapterID)
		})
	}

	var affected []string
	for _, ref := range pending {
		if !slices.Contains(affected, ref.ChapterID) {
			affected = append(affected, ref.ChapterID)
		}
	}
	if len(affected) == 0 {
		return &Report{
			Title:    r.outline.Title,
			Model:    st.Model,
			Progress: state.GetOverallProgress(st),
			State:    st,
		}, nil
	}

	r.logger.Info("resuming", "sections", len(pending), "chapters", affected)
	if _, err := r.store.ResetFailedSections(ctx); err != nil {
		return nil, err
	}

	report, err := r.execute(ctx, affected)
	if report != nil {
		report.Pending = len(pending)
	}
	return report, err
}

func (r *run) execute(ctx context.Context, chapterIDs []string) (*Report, error) {
	cfg := r.opts.Config

	client := r.opts.Client
	if client == nil {
		c, err := providers.NewClient(cfg.ToClientConfig(r.logger))
		if err != nil {
			return nil, err
		}
		client = c
	}

	recorder := metrics.NewRecorder(client.Name(), cfg.Model)
	events, err := progress.NewJSONLSink(r.opts.Dir.EventsPath(), r.logger)
	if err != nil {
		return nil, err
	}
	defer events.Close()

	sink := progress.Multi(r.opts.Console, progress.LogSink{Logger: r.logger}, events, recorder)

	stopMonitor, err := r.startMonitor(ctx, recorder)
	if err != nil {
		return nil, err
	}
	defer stopMonitor()

	gen, err := generator.New(generator.Config{
		Outline:               r.outline,
		Store:                 r.store,
		Client:                client,
		OutputDir:             r.opts.Dir.OutputPath(),
		Prompts:               section.NewResolver(r.opts.Dir.PromptsPath()),
		Model:                 cfg.Model,
		Temperature:           cfg.Temperature,
		MaxTokens:             cfg.MaxTokens,
		MaxConcurrentChapters: cfg.MaxConcurrentChapters,
		Sink:                  sink,
		Logger:                r.logger,
	})
	if err != nil {
		return nil, err
	}

	final, err := gen.GenerateBook(ctx, chapterIDs)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Title:    r.outline.Title,
		Model:    cfg.Model,
		Chapters: chapterIDs,
		Progress: state.GetOverallProgress(final),
		Metrics:  recorder.Summary(),
		State:    final,
	}
	if len(report.Chapters) == 0 {
		report.Chapters = r.outline.ChapterIDs()
	}

	if err := recorder.WriteTextfile(r.opts.Dir.MetricsPath()); err != nil {
		r.logger.Warn("failed to write metrics file", "error", err)
	} else {
		report.MetricsFile = r.opts.Dir.MetricsPath()
	}
	return report, nil
}

// startMonitor serves progress for the duration of the run. The returned
// func stops the server and waits for it.
func (r *run) startMonitor(ctx context.Context, recorder *metrics.Recorder) (func(), error) {
	if r.opts.MetricsAddr == "" {
		return func() {}, nil
	}

	srv, err := server.New(server.Config{
		Addr: r.opts.MetricsAddr,
		Services: &svcctx.Services{
			BookTitle: r.outline.Title,
			Store:     r.store,
			Metrics:   recorder,
			Logger:    r.logger,
		},
		Logger: r.logger,
	})
	if err != nil {
		return nil, err
	}

	srvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(srvCtx); err != nil {
			r.logger.Error("monitor server failed", "error", err)
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

// ParseChapters splits a --chapters value such as "1, 2,appendix_a",
// dropping blanks and duplicates.
func ParseChapters(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}
