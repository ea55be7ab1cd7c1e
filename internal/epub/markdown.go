package epub

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type frontmatter struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

// FromMarkdown splits a combined manuscript into chapters at each H1
// heading. A leading YAML frontmatter block supplies title and author.
// Headings starting with "Preface" are front matter and "Appendix" back
// matter.
func FromMarkdown(md string) (Book, []Chapter, error) {
	var book Book
	body := md
	if rest, ok := strings.CutPrefix(md, "---\n"); ok {
		head, tail, found := strings.Cut(rest, "\n---\n")
		if found {
			var fm frontmatter
			if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
				return Book{}, nil, fmt.Errorf("failed to parse frontmatter: %w", err)
			}
			book.Title, book.Author = fm.Title, fm.Author
			body = tail
		}
	}

	var chapters []Chapter
	var cur *Chapter
	var lines []string
	flush := func() {
		if cur == nil {
			return
		}
		cur.Markdown = trimSeparators(strings.Join(lines, "\n"))
		chapters = append(chapters, *cur)
	}

	for _, line := range strings.Split(body, "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			flush()
			title = strings.TrimSpace(title)
			cur = &Chapter{
				ID:     fmt.Sprintf("ch_%03d", len(chapters)+1),
				Title:  title,
				Matter: matterFor(title),
			}
			lines = []string{line}
			continue
		}
		if cur != nil {
			lines = append(lines, line)
		}
	}
	flush()

	if book.Title == "" && len(chapters) > 0 {
		book.Title = chapters[0].Title
	}
	return book, chapters, nil
}

func matterFor(title string) Matter {
	switch {
	case strings.HasPrefix(title, "Preface"):
		return FrontMatter
	case strings.HasPrefix(title, "Appendix"):
		return BackMatter
	}
	return BodyMatter
}

// trimSeparators drops the horizontal rules placed between chapters.
func trimSeparators(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, "---") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "---"))
	}
	return s
}
