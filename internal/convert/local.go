package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// LocalRunner runs an installed pandoc binary.
type LocalRunner struct {
	Binary string
}

// NewLocalRunner resolves binary on PATH (default "pandoc").
func NewLocalRunner(binary string) (*LocalRunner, error) {
	if binary == "" {
		binary = "pandoc"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("pandoc binary %q not found: %w", binary, err)
	}
	return &LocalRunner{Binary: path}, nil
}

func (r *LocalRunner) Name() string { return "pandoc" }

func (r *LocalRunner) Run(ctx context.Context, workDir string, args []string) error {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Version returns the first line of `pandoc --version` without the
// "pandoc " prefix.
func (r *LocalRunner) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, r.Binary, "--version").Output()
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimPrefix(strings.TrimSpace(first), "pandoc "), nil
}
