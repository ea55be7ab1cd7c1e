// Package outline parses a rubric markdown file into a types.Outline.
//
// Recognized structure:
//
//	# Book Title
//	# Part I: ...               (part markers, titles only)
//	# Preface: ...
//	# Chapter 1: ...
//	## Chapter Goals            (text until the next ## heading)
//	## 1.1 Section Title        (brief until the next ## or # heading)
//	# Appendix A: ...
//	# Final Notes               (text until the next # heading)
package outline

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/bgreenawald/non-fiction-book-writer/internal/types"
)

// DefaultTitle is used when the rubric has no title heading.
const DefaultTitle = "Untitled Book"

var (
	chapterHeading    = regexp.MustCompile(`^# Chapter (\d+):\s*(.+)$`)
	chapterTitleOnly  = regexp.MustCompile(`^# Chapter \d+:`)
	appendixHeading   = regexp.MustCompile(`^# Appendix ([A-Z]):\s*(.+)$`)
	sectionNumberedID = regexp.MustCompile(`^(\d+\.\d+)\s*[:.]?\s*`)
)

const maxSlugLen = 30

// ParseFile reads and parses the rubric at path.
func ParseFile(path string) (*types.Outline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric: %w", err)
	}
	return ParseString(string(data)), nil
}

// Parse reads a rubric from r.
func Parse(r io.Reader) (*types.Outline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric: %w", err)
	}
	return ParseString(string(data)), nil
}

// ParseString parses rubric markdown. Parsing never fails; unrecognized
// lines are ignored.
func ParseString(content string) *types.Outline {
	lines := strings.Split(content, "\n")

	out := &types.Outline{Title: findTitle(lines)}

	i := 0
	for i < len(lines) {
		line := lines[i]

		if strings.HasPrefix(line, "# Part ") {
			out.Parts = append(out.Parts, strings.TrimSpace(line[2:]))
			i++
			continue
		}

		if strings.HasPrefix(line, "# Preface") {
			var ch types.Chapter
			ch, i = parseChapter(lines, i, types.PrefaceID, nil)
			out.Preface = &ch
			continue
		}

		if m := chapterHeading.FindStringSubmatch(line); m != nil {
			num, err := strconv.Atoi(m[1])
			if err == nil {
				var ch types.Chapter
				ch, i = parseChapter(lines, i, strconv.Itoa(num), &num)
				out.Chapters = append(out.Chapters, ch)
				continue
			}
		}

		if m := appendixHeading.FindStringSubmatch(line); m != nil {
			var ch types.Chapter
			ch, i = parseChapter(lines, i, types.AppendixID(m[1]), nil)
			out.Appendices = append(out.Appendices, ch)
			continue
		}

		if strings.HasPrefix(line, "# Final Notes") {
			out.FinalNotes, i = extractUntil(lines, i+1, isH1)
			continue
		}

		i++
	}

	return out
}

// findTitle returns the first H1 that is not a part or chapter heading.
func findTitle(lines []string) string {
	for _, line := range lines {
		if strings.HasPrefix(line, "# ") && !strings.HasPrefix(line, "# Part") {
			if !chapterTitleOnly.MatchString(line) {
				return strings.TrimSpace(line[2:])
			}
		}
	}
	return DefaultTitle
}

func parseChapter(lines []string, start int, id string, number *int) (types.Chapter, int) {
	titleLine := lines[start]
	var title string
	if _, after, found := strings.Cut(titleLine, ":"); found {
		title = strings.TrimSpace(after)
	} else {
		title = strings.TrimSpace(titleLine[2:])
	}

	ch := types.Chapter{
		ID:        id,
		Number:    number,
		Title:     title,
		Sections:  []types.Section{},
		LineStart: start,
	}

	i := start + 1
	for i < len(lines) {
		line := lines[i]

		if isH1(line) {
			break
		}

		if strings.HasPrefix(line, "## Chapter Goals") {
			ch.Goals, i = extractUntil(lines, i+1, isH1OrH2)
			continue
		}

		// A blockquote directly under a "Summary" label is the chapter's summary box.
		if strings.HasPrefix(line, "> ") && strings.Contains(lines[i-1], "Summary") {
			ch.SummaryBox = strings.TrimSpace(line[2:])
			i++
			continue
		}

		if strings.HasPrefix(line, "## ") {
			var sec types.Section
			sec, i = parseSection(lines, i, id)
			ch.Sections = append(ch.Sections, sec)
			continue
		}

		i++
	}

	ch.LineEnd = i - 1
	return ch, i
}

func parseSection(lines []string, start int, chapterID string) (types.Section, int) {
	fullTitle := strings.TrimSpace(lines[start][3:])

	content, i := extractUntil(lines, start+1, isH1OrH2)

	return types.Section{
		ID:             SectionID(fullTitle, chapterID),
		Title:          fullTitle,
		HeadingLevel:   2,
		OutlineContent: content,
		LineStart:      start,
		LineEnd:        i - 1,
	}, i
}

// SectionID extracts a numeric id like "1.1" from a section title, or
// synthesizes "<chapterID>.<slug>" when the title has no numeric prefix.
func SectionID(title, chapterID string) string {
	if m := sectionNumberedID.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return chapterID + "." + slug(title)
}

func slug(title string) string {
	runes := []rune(strings.ToLower(title))
	for i, r := range runes {
		if !isASCIIAlnum(r) {
			runes[i] = '_'
		}
	}
	if len(runes) > maxSlugLen {
		runes = runes[:maxSlugLen]
	}
	return string(runes)
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isH1(line string) bool {
	return strings.HasPrefix(line, "# ")
}

func isH1OrH2(line string) bool {
	return strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "# ")
}

// extractUntil collects lines from start until stop matches, returning the
// trimmed text and the index of the stopping line.
func extractUntil(lines []string, start int, stop func(string) bool) (string, int) {
	i := start
	for i < len(lines) && !stop(lines[i]) {
		i++
	}
	return strings.TrimSpace(strings.Join(lines[start:i], "\n")), i
}
