// Package types provides shared types used across multiple packages.
// This package has no dependencies on other bookwriter packages to avoid import cycles.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// PrefaceID is the fixed chapter id of the preface.
	PrefaceID = "preface"

	// AppendixPrefix prefixes appendix chapter ids (e.g. "appendix_a").
	AppendixPrefix = "appendix_"
)

// ChapterKind distinguishes the preface, numbered chapters and appendices.
// Headings, prompt wording and output filenames depend on it.
type ChapterKind int

const (
	KindChapter ChapterKind = iota
	KindPreface
	KindAppendix
)

// String returns the display name of the kind.
func (k ChapterKind) String() string {
	switch k {
	case KindPreface:
		return "Preface"
	case KindAppendix:
		return "Appendix"
	default:
		return "Chapter"
	}
}

// KindOf classifies a chapter id.
func KindOf(chapterID string) ChapterKind {
	switch {
	case chapterID == PrefaceID:
		return KindPreface
	case strings.HasPrefix(chapterID, AppendixPrefix):
		return KindAppendix
	default:
		return KindChapter
	}
}

// AppendixID builds the chapter id for an appendix letter.
func AppendixID(letter string) string {
	return AppendixPrefix + strings.ToLower(letter)
}

// Section is one ## heading of the rubric and the brief the generator follows.
type Section struct {
	ID             string `json:"id" yaml:"id"` // e.g. "1.1", or "<chapter>.<slug>"
	Title          string `json:"title" yaml:"title"`
	HeadingLevel   int    `json:"heading_level" yaml:"heading_level"`
	OutlineContent string `json:"outline_content" yaml:"outline_content"`
	LineStart      int    `json:"line_start" yaml:"line_start"`
	LineEnd        int    `json:"line_end" yaml:"line_end"`
}

// Chapter is a parsed preface, chapter or appendix.
type Chapter struct {
	ID         string    `json:"id" yaml:"id"`
	Number     *int      `json:"number,omitempty" yaml:"number,omitempty"`
	Title      string    `json:"title" yaml:"title"`
	Goals      string    `json:"goals,omitempty" yaml:"goals,omitempty"`
	Sections   []Section `json:"sections" yaml:"sections"`
	SummaryBox string    `json:"summary_box,omitempty" yaml:"summary_box,omitempty"`
	LineStart  int       `json:"line_start" yaml:"line_start"`
	LineEnd    int       `json:"line_end" yaml:"line_end"`
}

// Kind returns the chapter kind derived from its id.
func (c *Chapter) Kind() ChapterKind {
	return KindOf(c.ID)
}

// DisplayID returns the id as it appears in headings: "" for the preface,
// the upper-case letter for appendices, the number otherwise.
func (c *Chapter) DisplayID() string {
	switch c.Kind() {
	case KindPreface:
		return ""
	case KindAppendix:
		return strings.ToUpper(strings.TrimPrefix(c.ID, AppendixPrefix))
	default:
		return c.ID
	}
}

// DisplayName labels a chapter id for tables: "Preface", "Appendix B",
// "Chapter 3".
func DisplayName(chapterID string) string {
	switch KindOf(chapterID) {
	case KindPreface:
		return "Preface"
	case KindAppendix:
		return "Appendix " + strings.ToUpper(strings.TrimPrefix(chapterID, AppendixPrefix))
	default:
		return "Chapter " + chapterID
	}
}

// Heading returns the H1 line for the chapter's output document.
func (c *Chapter) Heading() string {
	switch c.Kind() {
	case KindPreface:
		return "# Preface: " + c.Title
	case KindAppendix:
		return fmt.Sprintf("# Appendix %s: %s", c.DisplayID(), c.Title)
	default:
		return fmt.Sprintf("# Chapter %s: %s", c.ID, c.Title)
	}
}

// FileName returns the deterministic output filename. ChapterIDFromFileName
// inverts it so a combine step can order files by name alone.
func (c *Chapter) FileName() string {
	return ChapterFileName(c.ID)
}

// ChapterFileName returns the output filename for a chapter id.
func ChapterFileName(chapterID string) string {
	switch KindOf(chapterID) {
	case KindPreface:
		return "00_preface.md"
	case KindAppendix:
		return "appendix_" + strings.ToLower(strings.TrimPrefix(chapterID, AppendixPrefix)) + ".md"
	default:
		num, err := strconv.Atoi(chapterID)
		if err != nil {
			num = 0
		}
		return fmt.Sprintf("chapter_%02d.md", num)
	}
}

// ChapterIDFromFileName recovers the chapter id from a name produced by
// ChapterFileName.
func ChapterIDFromFileName(name string) (string, bool) {
	base, ok := strings.CutSuffix(name, ".md")
	if !ok {
		return "", false
	}
	switch {
	case base == "00_preface":
		return PrefaceID, true
	case strings.HasPrefix(base, "appendix_"):
		letter := strings.TrimPrefix(base, "appendix_")
		if letter == "" {
			return "", false
		}
		return AppendixID(letter), true
	case strings.HasPrefix(base, "chapter_"):
		num, err := strconv.Atoi(strings.TrimPrefix(base, "chapter_"))
		if err != nil {
			return "", false
		}
		return strconv.Itoa(num), true
	default:
		return "", false
	}
}

// Section returns the section with the given id.
func (c *Chapter) Section(id string) (*Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].ID == id {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

// Outline is the structured book parsed from rubric.md.
type Outline struct {
	Title      string    `json:"title" yaml:"title"`
	Preface    *Chapter  `json:"preface,omitempty" yaml:"preface,omitempty"`
	Parts      []string  `json:"parts,omitempty" yaml:"parts,omitempty"`
	Chapters   []Chapter `json:"chapters" yaml:"chapters"`
	Appendices []Chapter `json:"appendices,omitempty" yaml:"appendices,omitempty"`
	FinalNotes string    `json:"final_notes,omitempty" yaml:"final_notes,omitempty"`
}

// AllChapters returns the preface, numbered chapters and appendices in
// registration order.
func (o *Outline) AllChapters() []*Chapter {
	all := make([]*Chapter, 0, len(o.Chapters)+len(o.Appendices)+1)
	if o.Preface != nil {
		all = append(all, o.Preface)
	}
	for i := range o.Chapters {
		all = append(all, &o.Chapters[i])
	}
	for i := range o.Appendices {
		all = append(all, &o.Appendices[i])
	}
	return all
}

// ChapterIDs returns all chapter ids in registration order.
func (o *Outline) ChapterIDs() []string {
	chapters := o.AllChapters()
	ids := make([]string, len(chapters))
	for i, ch := range chapters {
		ids[i] = ch.ID
	}
	return ids
}

// Chapter looks up a chapter of any kind by id.
func (o *Outline) Chapter(id string) (*Chapter, bool) {
	for _, ch := range o.AllChapters() {
		if ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}

// SectionCount returns the number of sections across all chapters.
func (o *Outline) SectionCount() int {
	n := 0
	for _, ch := range o.AllChapters() {
		n += len(ch.Sections)
	}
	return n
}

// ChapterSortKey orders chapter ids as preface, numbered, appendices.
// Non-numeric chapter ids sort after numbered chapters.
func ChapterSortKey(chapterID string) (group, order int) {
	switch KindOf(chapterID) {
	case KindPreface:
		return 0, 0
	case KindAppendix:
		letter := strings.TrimPrefix(chapterID, AppendixPrefix)
		if letter == "" {
			return 2, 0
		}
		return 2, int(letter[len(letter)-1])
	default:
		n, err := strconv.Atoi(chapterID)
		if err != nil {
			return 1, 999
		}
		return 1, n
	}
}
