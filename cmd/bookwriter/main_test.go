package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bgreenawald/non-fiction-book-writer/internal/bookdir"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "text", false},
		{"debug", "json", false},
		{"loud", "text", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		_, err := newLogger(tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
		}
	}
}

func TestCLI_InitGenerateStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book")

	if err := execute(t, "init", path, "--title", "Test Book", "-o", "json"); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if err := execute(t, "init", path); err == nil {
		t.Fatal("second init error = nil, want error")
	}

	if err := execute(t, "generate", path, "--provider", "mock", "-o", "json"); err != nil {
		t.Fatalf("generate error = %v", err)
	}

	dir := bookdir.New(path)
	store, err := state.NewFileStore(dir.OutputPath(), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	st, err := store.Load(context.Background())
	if err != nil || st == nil {
		t.Fatalf("Load() = %v, %v", st, err)
	}
	if p := state.GetOverallProgress(st); p.Completed != p.TotalSections || p.TotalSections == 0 {
		t.Errorf("progress = %+v, want all completed", p)
	}

	if err := execute(t, "status", path, "-o", "json"); err != nil {
		t.Fatalf("status error = %v", err)
	}
	if err := execute(t, "resume", path, "--provider", "mock", "-o", "json"); err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if err := execute(t, "combine", path, "-o", "json"); err != nil {
		t.Fatalf("combine error = %v", err)
	}
	if _, err := os.Stat(dir.BookPath()); err != nil {
		t.Errorf("book.md missing: %v", err)
	}
}

func TestCLI_StatusWithoutState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book")
	if _, err := bookdir.Create(path, "Empty", ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := execute(t, "status", path, "-o", "json"); err == nil {
		t.Fatal("status error = nil, want error for missing state")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a long error message", 10); got != "a long ..." {
		t.Errorf("truncate() = %q, want %q", got, "a long ...")
	}
}
