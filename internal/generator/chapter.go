package generator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
	"github.com/bgreenawald/non-fiction-book-writer/internal/prompts/section"
	"github.com/bgreenawald/non-fiction-book-writer/internal/providers"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/tracing"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

var now = time.Now

// generateChapter walks a chapter's sections in order and stops at the
// first failure. It never returns an error or panics: every outcome ends
// up in the state store and the event sink.
func (g *Generator) generateChapter(ctx context.Context, runID string, ch *types.Chapter) {
	logger := g.logger.With("run_id", runID, "chapter", ch.ID)

	// Store writes outlive cancellation so a finished section is never lost.
	storeCtx := context.WithoutCancel(ctx)

	var current string
	defer func() {
		if r := recover(); r != nil {
			logger.Error("chapter worker panicked",
				"section", current,
				"panic", r,
				"stack", string(debug.Stack()))
			g.abortChapter(storeCtx, runID, ch, current, fmt.Errorf("panic in chapter %s: %v", ch.ID, r))
		}
	}()

	if ctx.Err() != nil {
		return
	}

	st, err := g.store.Load(storeCtx)
	if err != nil {
		logger.Error("failed to load state", "error", err)
		return
	}
	if st == nil {
		logger.Error("no state for chapter worker")
		return
	}
	chState, ok := st.Chapter(ch.ID)
	if !ok {
		logger.Warn("chapter missing from state, skipping")
		return
	}

	if chState.Status == state.ChapterCompleted {
		g.emit(progress.Event{RunID: runID, ChapterID: ch.ID, Kind: progress.KindSkipped, Message: "Already completed"})
		return
	}

	if _, err := g.store.MarkChapterStarted(storeCtx, ch.ID); err != nil {
		logger.Error("failed to mark chapter started", "error", err)
		return
	}
	g.emit(progress.Event{RunID: runID, ChapterID: ch.ID, Kind: progress.KindStarted})

	ctx, span := tracing.Start(ctx, "chapter",
		attribute.String("chapter.id", ch.ID),
		attribute.Int("chapter.sections", len(ch.Sections)),
	)
	defer span.End()

	for _, sec := range ch.Sections {
		if _, ok := chState.Sections[sec.ID]; !ok {
			err := fmt.Errorf("section %s in chapter %s: %w", sec.ID, ch.ID, state.ErrNotFound)
			logger.Error("outline and state disagree, stopping chapter", "section", sec.ID, "error", err)
			span.SetStatus(codes.Error, err.Error())
			g.emit(progress.Event{
				RunID:     runID,
				ChapterID: ch.ID,
				SectionID: sec.ID,
				Kind:      progress.KindChapterStopped,
				Message:   err.Error(),
			})
			g.finishChapter(storeCtx, ch, true)
			return
		}
	}

	// Completed sections seed the context for the ones still to write.
	var previous []section.Previous
	for _, sec := range ch.Sections {
		ss, ok := chState.Sections[sec.ID]
		if ok && ss.Status == state.SectionCompleted && ss.GeneratedContent != "" {
			previous = append(previous, section.Previous{Title: sec.Title, Content: ss.GeneratedContent})
		}
	}

	for i := range ch.Sections {
		sec := &ch.Sections[i]
		if chState.Sections[sec.ID].Status == state.SectionCompleted {
			continue
		}

		current = sec.ID
		content, err := g.generateSection(ctx, runID, ch, sec, previous)
		if err != nil {
			if errors.Is(err, errInterrupted) {
				logger.Info("chapter interrupted", "section", sec.ID)
				g.settle(storeCtx, ch)
				return
			}
			span.SetStatus(codes.Error, err.Error())
			g.emit(progress.Event{
				RunID:     runID,
				ChapterID: ch.ID,
				SectionID: sec.ID,
				Kind:      progress.KindChapterStopped,
				Message:   fmt.Sprintf("Stopped after section %s failed", sec.ID),
			})
			g.finishChapter(storeCtx, ch, true)
			return
		}
		previous = append(previous, section.Previous{Title: sec.Title, Content: content})
	}
	current = ""

	g.emit(progress.Event{RunID: runID, ChapterID: ch.ID, Kind: progress.KindChapterCompleted})
	g.finishChapter(storeCtx, ch, false)
}

// generateSection produces one section. Any error is recorded as a failed
// section before it is returned, except cancellation, which leaves the
// section in progress.
func (g *Generator) generateSection(ctx context.Context, runID string, ch *types.Chapter, sec *types.Section, previous []section.Previous) (string, error) {
	storeCtx := context.WithoutCancel(ctx)

	ctx, span := tracing.Start(ctx, "section",
		attribute.String("chapter.id", ch.ID),
		attribute.String("section.id", sec.ID),
	)
	defer span.End()

	if _, err := g.store.UpdateSection(storeCtx, ch.ID, sec.ID, state.SectionUpdate{Status: state.SectionInProgress}); err != nil {
		err = fmt.Errorf("failed to mark section in progress: %w", err)
		g.recordFailure(storeCtx, runID, ch.ID, sec.ID, err, 0)
		return "", err
	}
	g.emit(progress.Event{RunID: runID, ChapterID: ch.ID, SectionID: sec.ID, Kind: progress.KindGenerating})

	messages, err := section.Build(g.prompts, section.Input{
		BookTitle:   g.outline.Title,
		Chapter:     ch,
		Section:     sec,
		Previous:    previous,
		TargetWords: section.EstimateTargetWords(sec),
	})
	if err != nil {
		err = fmt.Errorf("failed to build prompt: %w", err)
		g.recordFailure(storeCtx, runID, ch.ID, sec.ID, err, 0)
		return "", err
	}

	start := now()
	result, err := g.client.Chat(ctx, &providers.ChatRequest{
		Messages:    messages,
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		RequestID:   uuid.NewString(),
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", errInterrupted, err)
		}
		span.SetStatus(codes.Error, err.Error())
		g.recordFailure(storeCtx, runID, ch.ID, sec.ID, err, elapsed)
		return "", err
	}
	if strings.TrimSpace(result.Content) == "" {
		err := &providers.APIError{Provider: g.client.Name(), Class: providers.ErrMalformedResponse, Message: "empty content in response"}
		span.SetStatus(codes.Error, err.Error())
		g.recordFailure(storeCtx, runID, ch.ID, sec.ID, err, elapsed)
		return "", err
	}

	if _, err := g.store.UpdateSection(storeCtx, ch.ID, sec.ID, state.SectionUpdate{
		Status:     state.SectionCompleted,
		Content:    result.Content,
		TokenCount: result.TotalTokens,
	}); err != nil {
		err = fmt.Errorf("failed to save section: %w", err)
		g.recordFailure(storeCtx, runID, ch.ID, sec.ID, err, elapsed)
		return "", err
	}

	span.SetAttributes(attribute.Int("tokens", result.TotalTokens))
	g.emit(progress.Event{
		RunID:     runID,
		ChapterID: ch.ID,
		SectionID: sec.ID,
		Kind:      progress.KindCompleted,
		Tokens:    result.TotalTokens,
		Duration:  elapsed.Seconds(),
	})
	return result.Content, nil
}

// recordFailure marks a section failed and emits the failure event. A store
// error here is logged; the event still goes out.
func (g *Generator) recordFailure(ctx context.Context, runID, chapterID, sectionID string, cause error, elapsed time.Duration) {
	if _, err := g.store.UpdateSection(ctx, chapterID, sectionID, state.SectionUpdate{
		Status: state.SectionFailed,
		Error:  cause.Error(),
	}); err != nil {
		g.logger.Error("failed to record section failure",
			"chapter", chapterID,
			"section", sectionID,
			"cause", cause,
			"error", err)
	}
	g.emit(progress.Event{
		RunID:      runID,
		ChapterID:  chapterID,
		SectionID:  sectionID,
		Kind:       progress.KindFailed,
		Message:    cause.Error(),
		ErrorClass: providers.ClassName(cause),
		Duration:   elapsed.Seconds(),
	})
}

// abortChapter records an unexpected worker failure. The section being
// generated, or else the first unfinished one, is marked failed.
func (g *Generator) abortChapter(ctx context.Context, runID string, ch *types.Chapter, sectionID string, cause error) {
	if sectionID == "" {
		if st, err := g.store.Load(ctx); err == nil && st != nil {
			if chState, ok := st.Chapter(ch.ID); ok {
				for _, sec := range ch.Sections {
					if ss, ok := chState.Sections[sec.ID]; ok && ss.Status != state.SectionCompleted {
						sectionID = sec.ID
						break
					}
				}
			}
		}
	}
	if sectionID != "" {
		g.recordFailure(ctx, runID, ch.ID, sectionID, cause, 0)
	}
	g.emit(progress.Event{
		RunID:     runID,
		ChapterID: ch.ID,
		SectionID: sectionID,
		Kind:      progress.KindChapterStopped,
		Message:   cause.Error(),
	})
	g.finishChapter(ctx, ch, true)
}

// finishChapter settles the chapter status and writes its markdown file.
func (g *Generator) finishChapter(ctx context.Context, ch *types.Chapter, partial bool) {
	st := g.settle(ctx, ch)
	if st == nil {
		return
	}
	chState, ok := st.Chapter(ch.ID)
	if !ok {
		return
	}
	if err := g.writeChapterFile(ch, chState, partial); err != nil {
		g.logger.Error("failed to write chapter file", "chapter", ch.ID, "error", err)
	}
}

func (g *Generator) settle(ctx context.Context, ch *types.Chapter) *state.BookState {
	st, err := g.store.SettleChapter(ctx, ch.ID)
	if err != nil {
		g.logger.Error("failed to settle chapter", "chapter", ch.ID, "error", err)
		return nil
	}
	return st
}
