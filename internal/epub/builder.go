// Package epub writes EPUB 3 files straight from the combined book
// markdown. It is the fallback used when pandoc is unavailable.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Matter places a chapter in the front, body or back of the book.
type Matter string

const (
	FrontMatter Matter = "front_matter"
	BodyMatter  Matter = "body"
	BackMatter  Matter = "back_matter"
)

// Book contains the metadata needed for epub generation.
type Book struct {
	Title    string
	Author   string
	Language string // ISO 639-1 code (e.g., "en")

	// Identifier is written as dc:identifier. Empty generates a urn:uuid.
	Identifier string
	// Modified is the dcterms:modified stamp. Zero uses the current time.
	Modified time.Time
}

// Chapter is one XHTML document in the spine.
type Chapter struct {
	ID       string // file stem, e.g. "ch_003"
	Title    string
	Matter   Matter
	Markdown string
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book     Book
	chapters []Chapter
	uid      string
}

// NewBuilder creates a new epub builder.
func NewBuilder(book Book, chapters []Chapter) *Builder {
	if book.Language == "" {
		book.Language = "en"
	}
	if book.Modified.IsZero() {
		book.Modified = time.Now()
	}
	uid := book.Identifier
	if uid == "" {
		uid = "urn:uuid:" + uuid.New().String()
	}
	return &Builder{book: book, chapters: inReadingOrder(chapters), uid: uid}
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if len(b.chapters) == 0 {
		return fmt.Errorf("epub: no chapters to write")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := b.WriteTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

// WriteTo writes the epub archive to w.
func (b *Builder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	// mimetype must be first and stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
		return err
	}

	files := []struct {
		name    string
		content string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", b.generatePackage()},
		{"OEBPS/nav.xhtml", b.generateNavigation()},
		{"OEBPS/toc.ncx", b.generateNCX()},
		{"OEBPS/styles/style.css", defaultStylesheet},
	}
	for _, ch := range b.chapters {
		files = append(files, struct {
			name    string
			content string
		}{chapterPath(ch), b.generateChapterXHTML(ch)})
	}

	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", f.name, err)
		}
		if _, err := io.WriteString(fw, f.content); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	return zw.Close()
}

func chapterPath(ch Chapter) string {
	return "OEBPS/chapters/" + ch.ID + ".xhtml"
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const defaultStylesheet = `body {
  font-family: Georgia, "Times New Roman", serif;
  line-height: 1.6;
  margin: 1em;
}

h1, h2, h3, h4 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
}

h1 {
  font-size: 1.8em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

h2 { font-size: 1.4em; }
h3 { font-size: 1.2em; }

p { margin: 0.5em 0; }

blockquote {
  margin: 1em 2em;
  border-left: 3px solid #ccc;
  padding-left: 1em;
}

code {
  font-family: Menlo, Consolas, monospace;
  font-size: 0.9em;
}

.front-matter, .back-matter {
  font-size: 0.95em;
}
`
