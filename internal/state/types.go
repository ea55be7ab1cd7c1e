// Package state persists book generation progress so that an interrupted
// run can resume without regenerating finished sections.
package state

import (
	"time"
)

// SectionStatus is the lifecycle state of one section.
type SectionStatus string

const (
	SectionPending    SectionStatus = "pending"
	SectionInProgress SectionStatus = "in_progress"
	SectionCompleted  SectionStatus = "completed"
	SectionFailed     SectionStatus = "failed"
)

// Valid reports whether s is one of the known section statuses.
func (s SectionStatus) Valid() bool {
	switch s {
	case SectionPending, SectionInProgress, SectionCompleted, SectionFailed:
		return true
	}
	return false
}

// ChapterStatus is derived from the statuses of a chapter's sections.
type ChapterStatus string

const (
	ChapterPending    ChapterStatus = "pending"
	ChapterInProgress ChapterStatus = "in_progress"
	ChapterCompleted  ChapterStatus = "completed"
	ChapterPartial    ChapterStatus = "partial"
	ChapterFailed     ChapterStatus = "failed"
)

// BookState is the persisted document at output/state.json.
type BookState struct {
	RubricFingerprint string                   `json:"rubric_hash"`
	Model             string                   `json:"model"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	Chapters          map[string]*ChapterState `json:"chapters"`
}

// ChapterState tracks one chapter and its sections.
type ChapterState struct {
	ChapterID   string                   `json:"chapter_id"`
	Status      ChapterStatus            `json:"status"`
	Sections    map[string]*SectionState `json:"sections"`
	StartedAt   *time.Time               `json:"started_at,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

// SectionState tracks one section. GeneratedContent is set only while the
// section is completed; RetryCount counts transitions into failed.
type SectionState struct {
	SectionID        string        `json:"section_id"`
	Status           SectionStatus `json:"status"`
	RetryCount       int           `json:"retry_count"`
	LastError        string        `json:"last_error,omitempty"`
	GeneratedContent string        `json:"generated_content,omitempty"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	TokenCount       int           `json:"token_count,omitempty"`
}

// SectionUpdate describes one section transition applied by Store.UpdateSection.
// Content and TokenCount are used for SectionCompleted, Error for SectionFailed.
type SectionUpdate struct {
	Status     SectionStatus
	Content    string
	Error      string
	TokenCount int
}

// SectionRef identifies a section within a chapter.
type SectionRef struct {
	ChapterID string `json:"chapter_id"`
	SectionID string `json:"section_id"`
}

// Chapter returns the chapter state by id.
func (b *BookState) Chapter(id string) (*ChapterState, bool) {
	ch, ok := b.Chapters[id]
	return ch, ok
}

// Clone returns a deep copy. Callers outside the store only ever see clones.
func (b *BookState) Clone() *BookState {
	if b == nil {
		return nil
	}
	out := *b
	out.Chapters = make(map[string]*ChapterState, len(b.Chapters))
	for id, ch := range b.Chapters {
		out.Chapters[id] = ch.clone()
	}
	return &out
}

func (c *ChapterState) clone() *ChapterState {
	out := *c
	out.StartedAt = cloneTime(c.StartedAt)
	out.CompletedAt = cloneTime(c.CompletedAt)
	out.Sections = make(map[string]*SectionState, len(c.Sections))
	for id, s := range c.Sections {
		sc := *s
		sc.StartedAt = cloneTime(s.StartedAt)
		sc.CompletedAt = cloneTime(s.CompletedAt)
		out.Sections[id] = &sc
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
