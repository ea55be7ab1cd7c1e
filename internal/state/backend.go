package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the name of the state document inside the output directory.
const FileName = "state.json"

// Backend stores the raw state document. Read returns an error satisfying
// errors.Is(err, os.ErrNotExist) when nothing has been written yet.
//
// FileBackend is used by the CLI; MemoryBackend is provided for unit tests.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// FileBackend keeps the document in a single file and replaces it
// atomically: the new content is written to a temp file in the same
// directory, synced, and renamed over the target.
type FileBackend struct {
	path string

	// beforeRename runs after the temp file is synced; tests use it to
	// simulate a crash before the rename.
	beforeRename func(tmpPath string) error
}

// NewFileBackend returns a backend for <dir>/state.json, creating dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileBackend{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the state file path.
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(b.path)
}

func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if b.beforeRename != nil {
		if err := b.beforeRename(tmpPath); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}

// MemoryBackend implements Backend in memory for unit tests.
// Error injection is supported for testing failure paths.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	writes int

	// ReadErr is returned by Read when non-nil.
	ReadErr error

	// WriteErr is returned by Write when non-nil.
	WriteErr error

	// ErrAfterNWrites makes every write after the first N fail with WriteErr
	// (or a generic error when WriteErr is nil). Zero disables it.
	ErrAfterNWrites int
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if m.data == nil {
		return nil, os.ErrNotExist
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryBackend) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrAfterNWrites > 0 && m.writes >= m.ErrAfterNWrites {
		if m.WriteErr != nil {
			return m.WriteErr
		}
		return fmt.Errorf("memory backend: write limit %d reached", m.ErrAfterNWrites)
	}
	if m.WriteErr != nil && m.ErrAfterNWrites == 0 {
		return m.WriteErr
	}

	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.writes++
	return nil
}

// SetData replaces the stored document.
func (m *MemoryBackend) SetData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// Writes returns the number of successful writes.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
