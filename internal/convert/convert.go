// Package convert turns the combined manuscript into PDF, EPUB or HTML
// with pandoc. Pandoc runs from a local binary when one is installed and
// from a container image otherwise. EPUB falls back to the native builder
// when neither is available.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/bgreenawald/non-fiction-book-writer/internal/epub"
)

// Format is an output document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
	FormatHTML Format = "html"
)

// DefaultPDFEngine is passed to pandoc for PDF output.
const DefaultPDFEngine = "xelatex"

// htmlStylesheet is linked from standalone HTML output.
const htmlStylesheet = "https://cdn.jsdelivr.net/npm/water.css@2/out/water.css"

// ErrPandocUnavailable is returned when neither a local pandoc nor Docker
// can be used.
var ErrPandocUnavailable = errors.New("pandoc not available: install pandoc (https://pandoc.org/installing.html) or start Docker")

// ParseFormats expands a --format value. "both" means pdf and epub.
func ParseFormats(s string) ([]Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return []Format{FormatPDF}, nil
	case "epub":
		return []Format{FormatEPUB}, nil
	case "html":
		return []Format{FormatHTML}, nil
	case "both", "":
		return []Format{FormatPDF, FormatEPUB}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want pdf, epub, html or both)", s)
}

// Args builds the pandoc argument list converting input to output. Paths
// are passed through unchanged so callers can use container paths.
func Args(format Format, input, output, pdfEngine string) []string {
	args := []string{input, "-o", output, "--toc", "--toc-depth=2", "--highlight-style=tango"}
	switch format {
	case FormatPDF:
		if pdfEngine == "" {
			pdfEngine = DefaultPDFEngine
		}
		args = append(args,
			"--pdf-engine="+pdfEngine,
			"-V", "geometry:margin=1in",
			"-V", "documentclass=book",
			"-V", "fontsize=11pt",
			"-V", "linkcolor=blue",
			"-V", "urlcolor=blue",
		)
	case FormatEPUB:
		args = append(args, "--epub-chapter-level=1")
	case FormatHTML:
		args = append(args, "--standalone", "-c", htmlStylesheet)
	}
	return args
}

// Runner executes pandoc with args inside workDir. Input and output paths
// in args are relative to workDir.
type Runner interface {
	Name() string
	Run(ctx context.Context, workDir string, args []string) error
}

// Config configures a Converter.
type Config struct {
	// Runner executes pandoc. Nil leaves only the native EPUB path.
	Runner    Runner
	PDFEngine string
	Logger    *slog.Logger
}

// Converter produces documents next to the input manuscript.
type Converter struct {
	runner    Runner
	pdfEngine string
	logger    *slog.Logger
}

// New creates a converter.
func New(cfg Config) *Converter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Converter{runner: cfg.Runner, pdfEngine: cfg.PDFEngine, logger: cfg.Logger}
}

// Result describes one produced document.
type Result struct {
	Format Format `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
	Via    string `json:"via" yaml:"via"`
	Pages  int    `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// Convert writes input (a markdown file) as format next to it, e.g.
// output/book.md becomes output/book.pdf.
func (c *Converter) Convert(ctx context.Context, input string, format Format) (*Result, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input %s: %w", input, err)
	}
	dir := filepath.Dir(input)
	inName := filepath.Base(input)
	outName := strings.TrimSuffix(inName, filepath.Ext(inName)) + "." + string(format)
	output := filepath.Join(dir, outName)

	if c.runner == nil {
		if format == FormatEPUB {
			return c.nativeEPUB(input, output)
		}
		return nil, ErrPandocUnavailable
	}

	c.logger.Info("converting", "format", format, "output", output, "via", c.runner.Name())
	if err := c.runner.Run(ctx, dir, Args(format, inName, outName, c.pdfEngine)); err != nil {
		return nil, fmt.Errorf("%s conversion failed: %w", strings.ToUpper(string(format)), err)
	}

	res := &Result{Format: format, Path: output, Via: c.runner.Name()}
	if format == FormatPDF {
		pages, err := PageCount(output)
		if err != nil {
			return nil, err
		}
		res.Pages = pages
	} else if _, err := os.Stat(output); err != nil {
		return nil, fmt.Errorf("pandoc produced no %s: %w", output, err)
	}
	return res, nil
}

func (c *Converter) nativeEPUB(input, output string) (*Result, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input, err)
	}
	book, chapters, err := epub.FromMarkdown(string(data))
	if err != nil {
		return nil, err
	}
	c.logger.Info("pandoc unavailable, writing native epub", "output", output, "chapters", len(chapters))
	if err := epub.NewBuilder(book, chapters).Build(output); err != nil {
		return nil, err
	}
	return &Result{Format: FormatEPUB, Path: output, Via: "native"}, nil
}

// PageCount opens a PDF and returns its page count. It fails for files
// that are not readable PDFs or have no pages.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("PDF %s has no pages", path)
	}
	return n, nil
}
