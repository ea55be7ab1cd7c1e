package state

import (
	"context"
	"testing"
)

func TestProgressQueries(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)
	if _, err := store.Initialize(ctx, testOutline(), "m", "fp"); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := store.UpdateSection(ctx, "1", "1.1", SectionUpdate{Status: SectionCompleted, Content: "one"}); err != nil {
		t.Fatalf("UpdateSection() error = %v", err)
	}
	if _, err := store.UpdateSection(ctx, "1", "1.2", SectionUpdate{Status: SectionFailed, Error: "x"}); err != nil {
		t.Fatalf("UpdateSection() error = %v", err)
	}
	st, err := store.UpdateSection(ctx, "2", "2.1", SectionUpdate{Status: SectionInProgress})
	if err != nil {
		t.Fatalf("UpdateSection() error = %v", err)
	}

	cp := GetChapterProgress(st, "1")
	if cp != (ChapterProgress{Total: 2, Completed: 1, Failed: 1}) {
		t.Errorf("GetChapterProgress(1) = %+v", cp)
	}
	if cp := GetChapterProgress(st, "missing"); cp != (ChapterProgress{}) {
		t.Errorf("GetChapterProgress(missing) = %+v", cp)
	}

	op := GetOverallProgress(st)
	want := OverallProgress{TotalChapters: 4, TotalSections: 4, Completed: 1, Failed: 1, Pending: 1, InProgress: 1}
	if op != want {
		t.Errorf("GetOverallProgress() = %+v, want %+v", op, want)
	}
	if got := op.Percent(); got != 25 {
		t.Errorf("Percent() = %v, want 25", got)
	}

	pending := PendingSections(st)
	wantRefs := []SectionRef{{"preface", "preface.why"}, {"1", "1.2"}, {"2", "2.1"}}
	if len(pending) != len(wantRefs) {
		t.Fatalf("PendingSections() = %v, want %v", pending, wantRefs)
	}
	for i := range wantRefs {
		if pending[i] != wantRefs[i] {
			t.Errorf("PendingSections()[%d] = %v, want %v", i, pending[i], wantRefs[i])
		}
	}

	done := CompletedSections(st, "1")
	if len(done) != 1 || done["1.1"] != "one" {
		t.Errorf("CompletedSections(1) = %v", done)
	}
}

func TestLessSectionID(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.2", "1.10", true},
		{"1.10", "1.9", false},
		{"2.1", "10.1", true},
		{"1.abc", "1.def", true},
		{"1", "1.1", true},
	}
	for _, tt := range tests {
		if got := lessSectionID(tt.a, tt.b); got != tt.want {
			t.Errorf("lessSectionID(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
