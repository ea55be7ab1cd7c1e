package epub

import (
	"regexp"
	"strings"
)

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*|\b_([^_]+)_\b`)
	codeRe   = regexp.MustCompile("`([^`]+)`")
)

// generateChapterXHTML wraps a chapter's converted markdown in an XHTML
// document.
func (b *Builder) generateChapterXHTML(ch Chapter) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(ch.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body`)
	switch ch.Matter {
	case FrontMatter:
		sb.WriteString(` class="front-matter"`)
	case BackMatter:
		sb.WriteString(` class="back-matter"`)
	}
	sb.WriteString(">\n")

	if strings.TrimSpace(ch.Markdown) == "" {
		sb.WriteString("<h1>" + escapeXML(ch.Title) + "</h1>\n")
	} else {
		sb.WriteString(markdownToXHTML(ch.Markdown))
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// markdownToXHTML converts the markdown subset the generator produces:
// ATX headings, paragraphs, block quotes, bullet lists, horizontal rules
// and inline emphasis.
func markdownToXHTML(md string) string {
	var out strings.Builder
	var para, quote []string
	inList := false

	flushPara := func() {
		if len(para) > 0 {
			out.WriteString("<p>" + inline(strings.Join(para, " ")) + "</p>\n")
			para = nil
		}
	}
	flushQuote := func() {
		if len(quote) > 0 {
			out.WriteString("<blockquote><p>" + inline(strings.Join(quote, " ")) + "</p></blockquote>\n")
			quote = nil
		}
	}
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}
	flushAll := func() {
		flushPara()
		flushQuote()
		closeList()
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flushAll()

		case headingLevel(trimmed) > 0:
			flushAll()
			level := headingLevel(trimmed)
			tag := "h" + string(rune('0'+level))
			text := strings.TrimSpace(trimmed[level+1:])
			out.WriteString("<" + tag + ">" + inline(text) + "</" + tag + ">\n")

		case trimmed == "---" || trimmed == "***" || trimmed == "___":
			flushAll()
			out.WriteString("<hr/>\n")

		case trimmed == ">" || strings.HasPrefix(trimmed, "> "):
			flushPara()
			closeList()
			quote = append(quote, strings.TrimSpace(strings.TrimPrefix(trimmed, ">")))

		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			flushPara()
			flushQuote()
			if !inList {
				out.WriteString("<ul>\n")
				inList = true
			}
			out.WriteString("<li>" + inline(trimmed[2:]) + "</li>\n")

		default:
			flushQuote()
			closeList()
			para = append(para, trimmed)
		}
	}
	flushAll()

	return out.String()
}

// headingLevel returns 1-4 for "# " through "#### ", otherwise 0.
func headingLevel(line string) int {
	for level := 1; level <= 4; level++ {
		prefix := strings.Repeat("#", level) + " "
		if strings.HasPrefix(line, prefix) {
			return level
		}
	}
	return 0
}

// inline escapes text and applies bold, italic and code spans.
func inline(text string) string {
	text = escapeXML(text)
	text = codeRe.ReplaceAllString(text, "<code>$1</code>")
	text = boldRe.ReplaceAllStringFunc(text, func(m string) string {
		return "<strong>" + m[2:len(m)-2] + "</strong>"
	})
	text = italicRe.ReplaceAllStringFunc(text, func(m string) string {
		return "<em>" + m[1:len(m)-1] + "</em>"
	})
	return text
}
