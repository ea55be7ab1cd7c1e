// Package bookdir describes the on-disk layout of a book project.
//
//	<book>/rubric.md
//	<book>/config.yaml
//	<book>/prompts/            optional prompt overrides
//	<book>/output/state.json
//	<book>/output/chapters/*.md
//	<book>/output/book.md
//	<book>/output/events.jsonl
//	<book>/output/metrics.prom
package bookdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bgreenawald/non-fiction-book-writer/internal/config"
)

const (
	RubricFileName  = "rubric.md"
	ConfigFileName  = "config.yaml"
	PromptsDirName  = "prompts"
	OutputDirName   = "output"
	ChaptersDirName = "chapters"
	BookFileName    = "book.md"
	EventsFileName  = "events.jsonl"
	MetricsFileName = "metrics.prom"
)

// ErrExists is returned by Create when the directory already exists.
var ErrExists = errors.New("book directory already exists")

// Dir is a book project directory.
type Dir struct {
	path string
}

// New returns the Dir rooted at path. Nothing is touched on disk.
func New(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the root path of the book directory.
func (d *Dir) Path() string {
	return d.path
}

// Name returns the directory's base name.
func (d *Dir) Name() string {
	return filepath.Base(d.path)
}

func (d *Dir) RubricPath() string {
	return filepath.Join(d.path, RubricFileName)
}

func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PromptsPath is where per-book prompt overrides live.
func (d *Dir) PromptsPath() string {
	return filepath.Join(d.path, PromptsDirName)
}

func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

func (d *Dir) ChaptersPath() string {
	return filepath.Join(d.OutputPath(), ChaptersDirName)
}

func (d *Dir) BookPath() string {
	return filepath.Join(d.OutputPath(), BookFileName)
}

func (d *Dir) EventsPath() string {
	return filepath.Join(d.OutputPath(), EventsFileName)
}

func (d *Dir) MetricsPath() string {
	return filepath.Join(d.OutputPath(), MetricsFileName)
}

// ExportPath returns output/book.<ext>.
func (d *Dir) ExportPath(ext string) string {
	return filepath.Join(d.OutputPath(), "book."+ext)
}

// Validate checks that the directory exists and holds a rubric.
func (d *Dir) Validate() error {
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("book directory %s: %w", d.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("book directory %s is not a directory", d.path)
	}
	if !d.HasRubric() {
		return fmt.Errorf("rubric not found: %s", d.RubricPath())
	}
	return nil
}

// HasRubric reports whether rubric.md exists.
func (d *Dir) HasRubric() bool {
	_, err := os.Stat(d.RubricPath())
	return err == nil
}

// EnsureOutput creates output/chapters if missing.
func (d *Dir) EnsureOutput() error {
	if err := os.MkdirAll(d.ChaptersPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Config loads the book's config.yaml; a missing file gives an empty config.
func (d *Dir) Config() (*config.BookConfig, error) {
	return config.LoadBookConfig(d.ConfigPath())
}

// Create lays out a new book project with a config and a template rubric.
// It refuses to touch an existing directory.
func Create(path, title, model string) (*Dir, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrExists)
	}

	d := New(path)
	if err := d.EnsureOutput(); err != nil {
		return nil, err
	}
	if err := config.WriteBookConfig(d.ConfigPath(), &config.BookConfig{Title: title, Model: model}); err != nil {
		return nil, err
	}
	if err := os.WriteFile(d.RubricPath(), []byte(RubricTemplate(title)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write rubric: %w", err)
	}
	return d, nil
}

// RubricTemplate is the starter outline written by Create.
func RubricTemplate(title string) string {
	return "# " + title + `

# Chapter 1: First Chapter

## Chapter Goals
- Define your chapter goals here

## 1.1 First Section

### Subsection guidance
- Add your outline content here

## 1.2 Second Section

### Subsection guidance
- Continue adding sections...
`
}

// List returns the book projects (subdirectories holding a rubric) under
// root, sorted by name.
func List(root string) ([]*Dir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	var books []*Dir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d := New(filepath.Join(root, e.Name()))
		if d.HasRubric() {
			books = append(books, d)
		}
	}
	return books, nil
}
