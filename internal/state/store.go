package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

var (
	// ErrNotFound is returned when a chapter or section id is not in the state.
	ErrNotFound = errors.New("not found in state")

	// ErrNoState is returned by mutations when no valid state has been saved.
	ErrNoState = errors.New("no generation state")

	// ErrEmptyContent is returned when a section is marked completed
	// without generated content.
	ErrEmptyContent = errors.New("completed section has no content")
)

// Store serializes all reads and writes of the book state.
//
// Every mutation takes the store lock, reads the latest persisted document,
// applies one change, and writes the whole document back before returning a
// snapshot. Workers therefore never share mutable state with each other.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore creates a store over backend. A nil logger uses slog.Default().
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// NewFileStore creates a store persisting to <outputDir>/state.json.
func NewFileStore(outputDir string, logger *slog.Logger) (*Store, error) {
	backend, err := NewFileBackend(outputDir)
	if err != nil {
		return nil, err
	}
	return NewStore(backend, logger), nil
}

// Load returns the persisted state. A missing, undecodable, or
// schema-invalid document yields (nil, nil); a corrupt file is logged and
// treated as absent so the caller reinitializes.
func (s *Store) Load(ctx context.Context) (*BookState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func (s *Store) loadLocked(ctx context.Context) (*BookState, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	st, err := decode(data)
	if err != nil {
		s.logger.Warn("could not load state file, ignoring it", "error", err)
		return nil, nil
	}
	return st, nil
}

// Save persists st, stamping UpdatedAt.
func (s *Store) Save(ctx context.Context, st *BookState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, st)
}

func (s *Store) saveLocked(ctx context.Context, st *BookState) error {
	st.UpdatedAt = s.now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Initialize creates fresh state for outline, with every section pending,
// and persists it. Any previous state is replaced.
func (s *Store) Initialize(ctx context.Context, outline *types.Outline, model, fingerprint string) (*BookState, error) {
	now := s.now()
	st := &BookState{
		RubricFingerprint: fingerprint,
		Model:             model,
		CreatedAt:         now,
		UpdatedAt:         now,
		Chapters:          make(map[string]*ChapterState),
	}

	for _, ch := range outline.AllChapters() {
		cs := &ChapterState{
			ChapterID: ch.ID,
			Status:    ChapterPending,
			Sections:  make(map[string]*SectionState, len(ch.Sections)),
		}
		for _, sec := range ch.Sections {
			cs.Sections[sec.ID] = &SectionState{
				SectionID: sec.ID,
				Status:    SectionPending,
			}
		}
		st.Chapters[ch.ID] = cs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(ctx, st); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// mutate applies fn to the latest persisted state and saves the result.
func (s *Store) mutate(ctx context.Context, fn func(st *BookState, now time.Time) error) (*BookState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoState
	}

	if err := fn(st, s.now()); err != nil {
		return nil, err
	}
	if err := s.saveLocked(ctx, st); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// UpdateSection applies one section transition, recomputes the chapter's
// status, and persists the result.
func (s *Store) UpdateSection(ctx context.Context, chapterID, sectionID string, u SectionUpdate) (*BookState, error) {
	if !u.Status.Valid() {
		return nil, fmt.Errorf("invalid section status %q", u.Status)
	}

	return s.mutate(ctx, func(st *BookState, now time.Time) error {
		ch, ok := st.Chapters[chapterID]
		if !ok {
			return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
		}
		sec, ok := ch.Sections[sectionID]
		if !ok {
			return fmt.Errorf("section %s in chapter %s: %w", sectionID, chapterID, ErrNotFound)
		}
		if u.Status == SectionCompleted && u.Content == "" {
			return fmt.Errorf("section %s in chapter %s: %w", sectionID, chapterID, ErrEmptyContent)
		}

		sec.Status = u.Status
		switch u.Status {
		case SectionInProgress:
			sec.StartedAt = &now
		case SectionCompleted:
			sec.CompletedAt = &now
			sec.GeneratedContent = u.Content
			sec.TokenCount = u.TokenCount
			sec.LastError = ""
		case SectionFailed:
			sec.LastError = u.Error
			sec.RetryCount++
			sec.GeneratedContent = ""
		case SectionPending:
			sec.GeneratedContent = ""
		}

		ch.recompute(now)
		return nil
	})
}

// MarkChapterStarted sets the chapter in progress and stamps StartedAt.
func (s *Store) MarkChapterStarted(ctx context.Context, chapterID string) (*BookState, error) {
	return s.mutate(ctx, func(st *BookState, now time.Time) error {
		ch, ok := st.Chapters[chapterID]
		if !ok {
			return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
		}
		ch.Status = ChapterInProgress
		ch.StartedAt = &now
		return nil
	})
}

// SettleChapter recomputes a chapter's status from its sections. The
// orchestrator calls it when a worker finishes so a chapter marked started
// never stays in progress once its sections are final.
func (s *Store) SettleChapter(ctx context.Context, chapterID string) (*BookState, error) {
	return s.mutate(ctx, func(st *BookState, now time.Time) error {
		ch, ok := st.Chapters[chapterID]
		if !ok {
			return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
		}
		ch.recompute(now)
		return nil
	})
}

// ResetFailedSections returns every failed section to pending with a zero
// retry count and no error, then recomputes all chapters. It persists once.
func (s *Store) ResetFailedSections(ctx context.Context) (*BookState, error) {
	return s.mutate(ctx, func(st *BookState, now time.Time) error {
		for _, ch := range st.Chapters {
			for _, sec := range ch.Sections {
				if sec.Status == SectionFailed {
					sec.Status = SectionPending
					sec.RetryCount = 0
					sec.LastError = ""
				}
			}
			ch.recompute(now)
		}
		return nil
	})
}

// ShouldReinitialize reports whether st was built from a different rubric.
func ShouldReinitialize(st *BookState, fingerprint string) bool {
	return st == nil || st.RubricFingerprint != fingerprint
}
