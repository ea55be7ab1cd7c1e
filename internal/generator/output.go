package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

const (
	// BookFileName is the combined manuscript in the output directory.
	BookFileName = "book.md"

	// DefaultAuthor fills the author field of the combined manuscript.
	DefaultAuthor = "AI-Assisted Draft"

	incompleteNotice = "> **Note**: This chapter is incomplete due to generation errors."
	pendingNotice    = "> *Section not yet generated*"
	chapterSeparator = "\n\n---\n\n"
)

// RenderChapter renders a chapter document from its outline and state.
// partial adds a notice that the chapter is incomplete.
func RenderChapter(ch *types.Chapter, chState *state.ChapterState, partial bool) string {
	lines := []string{ch.Heading(), ""}
	if partial {
		lines = append(lines, incompleteNotice, "")
	}

	for _, sec := range ch.Sections {
		ss, ok := chState.Sections[sec.ID]
		if !ok {
			continue
		}
		lines = append(lines, "## "+sec.Title, "")
		switch ss.Status {
		case state.SectionCompleted:
			if ss.GeneratedContent != "" {
				lines = append(lines, ss.GeneratedContent)
			}
		case state.SectionFailed:
			lines = append(lines, "> **Generation failed**: "+ss.LastError)
		default:
			lines = append(lines, pendingNotice)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (g *Generator) writeChapterFile(ch *types.Chapter, chState *state.ChapterState, partial bool) error {
	dir := g.ChaptersPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create chapters directory: %w", err)
	}
	path := filepath.Join(dir, ch.FileName())
	if err := os.WriteFile(path, []byte(RenderChapter(ch, chState, partial)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

type frontmatter struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// ChapterFiles returns the chapter files under chaptersDir in book order:
// preface, numbered chapters, appendices. Files with other names are
// ignored.
func ChapterFiles(chaptersDir string) ([]string, error) {
	entries, err := os.ReadDir(chaptersDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapters directory: %w", err)
	}

	type chapterFile struct {
		path         string
		group, order int
	}
	var files []chapterFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := types.ChapterIDFromFileName(e.Name())
		if !ok {
			continue
		}
		group, order := types.ChapterSortKey(id)
		files = append(files, chapterFile{path: filepath.Join(chaptersDir, e.Name()), group: group, order: order})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].group != files[j].group {
			return files[i].group < files[j].group
		}
		return files[i].order < files[j].order
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// CombineChapters concatenates the chapter files under outputDir into
// outputDir/book.md behind a YAML frontmatter block and returns its path.
func CombineChapters(outputDir, title string) (string, error) {
	files, err := ChapterFiles(filepath.Join(outputDir, ChaptersDir))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no chapter files in %s", filepath.Join(outputDir, ChaptersDir))
	}

	fm, err := yaml.Marshal(frontmatter{Title: title, Author: DefaultAuthor})
	if err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		buf.Write(data)
		buf.WriteString(chapterSeparator)
	}

	bookPath := filepath.Join(outputDir, BookFileName)
	if err := os.WriteFile(bookPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", bookPath, err)
	}
	return bookPath, nil
}
