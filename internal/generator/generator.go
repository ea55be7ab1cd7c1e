// Package generator drives book generation: chapters run concurrently up
// to a limit, sections within a chapter run strictly in order, and every
// section transition is persisted through the state store so an
// interrupted run resumes where it stopped.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/prompts"
	"github.com/bgreenawald/non-fiction-book-writer/internal/prompts/section"
	"github.com/bgreenawald/non-fiction-book-writer/internal/providers"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/tracing"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

// DefaultMaxConcurrentChapters bounds chapter workers when Config leaves it unset.
const DefaultMaxConcurrentChapters = 5

// ChaptersDir is the subdirectory of the output directory holding one
// markdown file per chapter.
const ChaptersDir = "chapters"

// errInterrupted marks a section abandoned because the run was cancelled.
// The section stays in progress and is regenerated on resume.
var errInterrupted = errors.New("generation interrupted")

// Config configures a Generator.
type Config struct {
	Outline *types.Outline
	Store   *state.Store
	Client  providers.LLMClient

	// OutputDir is the book's output directory; chapter files go to
	// OutputDir/chapters.
	OutputDir string

	// Prompts resolves section prompts. Nil uses the embedded set.
	Prompts *prompts.Resolver

	Model       string
	Temperature float64
	MaxTokens   int

	MaxConcurrentChapters int

	Sink   progress.Sink
	Logger *slog.Logger
}

// Generator runs chapter workers against the state store.
type Generator struct {
	outline *types.Outline
	store   *state.Store
	client  providers.LLMClient
	prompts *prompts.Resolver

	outputDir   string
	model       string
	temperature float64
	maxTokens   int
	limit       int

	sink   progress.Sink
	logger *slog.Logger
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Outline == nil {
		return nil, fmt.Errorf("outline is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	g := &Generator{
		outline:     cfg.Outline,
		store:       cfg.Store,
		client:      cfg.Client,
		prompts:     cfg.Prompts,
		outputDir:   cfg.OutputDir,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limit:       cfg.MaxConcurrentChapters,
		sink:        cfg.Sink,
		logger:      cfg.Logger,
	}
	if g.prompts == nil {
		g.prompts = section.NewResolver("")
	}
	if g.limit <= 0 {
		g.limit = DefaultMaxConcurrentChapters
	}
	if g.sink == nil {
		g.sink = progress.Discard
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// ChaptersPath returns the directory chapter files are written to.
func (g *Generator) ChaptersPath() string {
	return filepath.Join(g.outputDir, ChaptersDir)
}

// GenerateBook runs a worker per target chapter, at most
// MaxConcurrentChapters at a time, and returns the state as persisted after
// every worker has finished. An empty chapterIDs targets the whole book.
//
// Chapter failures are recorded in the state, never returned. The error
// return is reserved for a missing state or an unusable output directory.
func (g *Generator) GenerateBook(ctx context.Context, chapterIDs []string) (*state.BookState, error) {
	runID := uuid.NewString()
	logger := g.logger.With("run_id", runID)

	ctx, span := tracing.Start(ctx, "generate_book",
		attribute.String("run_id", runID),
		attribute.String("book.title", g.outline.Title),
	)
	defer span.End()

	st, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, state.ErrNoState
	}

	if err := os.MkdirAll(g.ChaptersPath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chapters directory: %w", err)
	}

	targets := g.targets(chapterIDs)
	logger.Info("generating book",
		"title", g.outline.Title,
		"chapters", len(targets),
		"max_concurrent", g.limit,
		"model", g.model)

	var eg errgroup.Group
	eg.SetLimit(g.limit)
	for _, ch := range targets {
		eg.Go(func() error {
			g.generateChapter(ctx, runID, ch)
			return nil
		})
	}
	// Workers record their failures in the store and always return nil.
	eg.Wait()

	// The final reload must succeed even when the run was cancelled.
	final, err := g.store.Load(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	if final == nil {
		return nil, fmt.Errorf("state disappeared during generation: %w", state.ErrNoState)
	}

	overall := state.GetOverallProgress(final)
	logger.Info("generation finished",
		"completed", overall.Completed,
		"failed", overall.Failed,
		"total", overall.TotalSections)
	return final, nil
}

// targets resolves chapter ids to outline chapters. Unknown ids are skipped
// with a warning and duplicates collapse.
func (g *Generator) targets(chapterIDs []string) []*types.Chapter {
	if len(chapterIDs) == 0 {
		return g.outline.AllChapters()
	}

	seen := make(map[string]bool, len(chapterIDs))
	out := make([]*types.Chapter, 0, len(chapterIDs))
	for _, id := range chapterIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ch, ok := g.outline.Chapter(id)
		if !ok {
			g.logger.Warn("unknown chapter id, skipping", "chapter", id)
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (g *Generator) emit(e progress.Event) {
	if e.Time.IsZero() {
		e.Time = now()
	}
	g.sink.Emit(e)
}
