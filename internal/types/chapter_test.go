package types

import (
	"sort"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestChapter_HeadingAndFileName(t *testing.T) {
	tests := []struct {
		name     string
		ch       Chapter
		heading  string
		fileName string
	}{
		{
			name:     "preface",
			ch:       Chapter{ID: PrefaceID, Title: "Why This Book"},
			heading:  "# Preface: Why This Book",
			fileName: "00_preface.md",
		},
		{
			name:     "numbered chapter",
			ch:       Chapter{ID: "3", Number: intPtr(3), Title: "Markets"},
			heading:  "# Chapter 3: Markets",
			fileName: "chapter_03.md",
		},
		{
			name:     "two digit chapter",
			ch:       Chapter{ID: "12", Number: intPtr(12), Title: "Scale"},
			heading:  "# Chapter 12: Scale",
			fileName: "chapter_12.md",
		},
		{
			name:     "appendix",
			ch:       Chapter{ID: AppendixID("B"), Title: "Glossary"},
			heading:  "# Appendix B: Glossary",
			fileName: "appendix_b.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ch.Heading(); got != tt.heading {
				t.Errorf("Heading() = %q, want %q", got, tt.heading)
			}
			if got := tt.ch.FileName(); got != tt.fileName {
				t.Errorf("FileName() = %q, want %q", got, tt.fileName)
			}
		})
	}
}

func TestChapterIDFromFileName(t *testing.T) {
	for _, id := range []string{PrefaceID, "1", "10", AppendixID("c")} {
		got, ok := ChapterIDFromFileName(ChapterFileName(id))
		if !ok {
			t.Fatalf("ChapterIDFromFileName(%q) not recognized", ChapterFileName(id))
		}
		if got != id {
			t.Errorf("round trip of %q = %q", id, got)
		}
	}

	for _, name := range []string{"book.md", "chapter_xx.md", "notes.txt", "appendix_.md"} {
		if _, ok := ChapterIDFromFileName(name); ok {
			t.Errorf("ChapterIDFromFileName(%q) should not be recognized", name)
		}
	}
}

func TestOutline_AllChapters(t *testing.T) {
	o := &Outline{
		Title:      "Book",
		Preface:    &Chapter{ID: PrefaceID},
		Chapters:   []Chapter{{ID: "1"}, {ID: "2"}},
		Appendices: []Chapter{{ID: AppendixID("a")}},
	}

	ids := o.ChapterIDs()
	want := []string{PrefaceID, "1", "2", "appendix_a"}
	if len(ids) != len(want) {
		t.Fatalf("ChapterIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ChapterIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	if _, ok := o.Chapter("2"); !ok {
		t.Error("Chapter(\"2\") not found")
	}
	if _, ok := o.Chapter("99"); ok {
		t.Error("Chapter(\"99\") should not be found")
	}
}

func TestChapterSortKey(t *testing.T) {
	ids := []string{AppendixID("b"), "10", "intro", "2", PrefaceID, AppendixID("a")}
	sort.Slice(ids, func(i, j int) bool {
		gi, oi := ChapterSortKey(ids[i])
		gj, oj := ChapterSortKey(ids[j])
		if gi != gj {
			return gi < gj
		}
		return oi < oj
	})

	want := []string{PrefaceID, "2", "10", "intro", "appendix_a", "appendix_b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", ids, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"preface":    "Preface",
		"appendix_b": "Appendix B",
		"3":          "Chapter 3",
	}
	for id, want := range tests {
		if got := DisplayName(id); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", id, got, want)
		}
	}
}
