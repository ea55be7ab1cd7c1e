package state

import "time"

// AggregateStatus derives a chapter status from its section statuses.
//
// Rules are applied in order: no sections is completed, all pending is
// pending, all completed is completed, any failure is partial when some
// section completed and failed otherwise, and everything else is in progress.
func AggregateStatus(sections map[string]*SectionState) ChapterStatus {
	if len(sections) == 0 {
		return ChapterCompleted
	}

	var pending, completed, failed int
	for _, s := range sections {
		switch s.Status {
		case SectionPending:
			pending++
		case SectionCompleted:
			completed++
		case SectionFailed:
			failed++
		}
	}

	switch {
	case pending == len(sections):
		return ChapterPending
	case completed == len(sections):
		return ChapterCompleted
	case failed > 0 && completed > 0:
		return ChapterPartial
	case failed > 0:
		return ChapterFailed
	default:
		return ChapterInProgress
	}
}

// recompute refreshes the chapter's status, stamping CompletedAt the first
// time it becomes completed.
func (c *ChapterState) recompute(now time.Time) {
	c.Status = AggregateStatus(c.Sections)
	if c.Status == ChapterCompleted && c.CompletedAt == nil {
		c.CompletedAt = &now
	}
}
