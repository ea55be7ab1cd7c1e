package state

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

// ChapterProgress counts a chapter's sections by status.
type ChapterProgress struct {
	Total      int `json:"total" yaml:"total"`
	Completed  int `json:"completed" yaml:"completed"`
	Failed     int `json:"failed" yaml:"failed"`
	Pending    int `json:"pending" yaml:"pending"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
}

// OverallProgress counts sections across the whole book.
type OverallProgress struct {
	TotalChapters int `json:"total_chapters" yaml:"total_chapters"`
	TotalSections int `json:"total_sections" yaml:"total_sections"`
	Completed     int `json:"completed" yaml:"completed"`
	Failed        int `json:"failed" yaml:"failed"`
	Pending       int `json:"pending" yaml:"pending"`
	InProgress    int `json:"in_progress" yaml:"in_progress"`
}

// Percent returns the completed share of sections, 0 when there are none.
func (p OverallProgress) Percent() float64 {
	if p.TotalSections == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.TotalSections) * 100
}

func (p *ChapterProgress) add(status SectionStatus) {
	p.Total++
	switch status {
	case SectionCompleted:
		p.Completed++
	case SectionFailed:
		p.Failed++
	case SectionPending:
		p.Pending++
	case SectionInProgress:
		p.InProgress++
	}
}

// GetChapterProgress summarizes one chapter; an unknown id yields zeros.
func GetChapterProgress(st *BookState, chapterID string) ChapterProgress {
	var p ChapterProgress
	if st == nil {
		return p
	}
	ch, ok := st.Chapters[chapterID]
	if !ok {
		return p
	}
	for _, sec := range ch.Sections {
		p.add(sec.Status)
	}
	return p
}

// GetOverallProgress summarizes every section in the book.
func GetOverallProgress(st *BookState) OverallProgress {
	var p OverallProgress
	if st == nil {
		return p
	}
	p.TotalChapters = len(st.Chapters)
	for id := range st.Chapters {
		cp := GetChapterProgress(st, id)
		p.TotalSections += cp.Total
		p.Completed += cp.Completed
		p.Failed += cp.Failed
		p.Pending += cp.Pending
		p.InProgress += cp.InProgress
	}
	return p
}

// PendingSections lists sections that still need generation, in book
// order. In-progress sections are included: outside a running worker they
// were interrupted and must be regenerated.
func PendingSections(st *BookState) []SectionRef {
	var refs []SectionRef
	if st == nil {
		return refs
	}
	for _, chapterID := range SortedChapterIDs(st) {
		ch := st.Chapters[chapterID]
		for _, sectionID := range sortedSectionIDs(ch) {
			switch ch.Sections[sectionID].Status {
			case SectionPending, SectionInProgress, SectionFailed:
				refs = append(refs, SectionRef{ChapterID: chapterID, SectionID: sectionID})
			}
		}
	}
	return refs
}

// CompletedSections returns the generated content of a chapter's completed
// sections keyed by section id.
func CompletedSections(st *BookState, chapterID string) map[string]string {
	out := make(map[string]string)
	if st == nil {
		return out
	}
	ch, ok := st.Chapters[chapterID]
	if !ok {
		return out
	}
	for id, sec := range ch.Sections {
		if sec.Status == SectionCompleted {
			out[id] = sec.GeneratedContent
		}
	}
	return out
}

// SortedChapterIDs returns the state's chapter ids as preface, numbered
// chapters, then appendices.
func SortedChapterIDs(st *BookState) []string {
	ids := make([]string, 0, len(st.Chapters))
	for id := range st.Chapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		gi, oi := types.ChapterSortKey(ids[i])
		gj, oj := types.ChapterSortKey(ids[j])
		if gi != gj {
			return gi < gj
		}
		if oi != oj {
			return oi < oj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func sortedSectionIDs(ch *ChapterState) []string {
	ids := make([]string, 0, len(ch.Sections))
	for id := range ch.Sections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return lessSectionID(ids[i], ids[j])
	})
	return ids
}

// lessSectionID orders dotted ids numerically per component so "1.10"
// follows "1.9"; non-numeric components compare as strings.
func lessSectionID(a, b string) bool {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] == pb[i] {
			continue
		}
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA == nil && errB == nil {
			return na < nb
		}
		return pa[i] < pb[i]
	}
	return len(pa) < len(pb)
}
