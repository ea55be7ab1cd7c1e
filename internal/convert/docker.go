package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	DefaultImage = "pandoc/latex:latest"
	// WorkDir is where the manuscript directory is mounted in the container.
	WorkDir = "/data"
	Label   = "bookwriter-pandoc"
)

// DockerRunner runs pandoc in a throwaway container with the manuscript
// directory bind-mounted at /data.
type DockerRunner struct {
	cli    *client.Client
	image  string
	labels map[string]string
}

// DockerConfig holds configuration for the Docker runner.
type DockerConfig struct {
	Image  string
	Labels map[string]string // Optional extra labels (used for test cleanup)
}

// NewDockerRunner connects to the Docker daemon from the environment and
// checks that it answers.
func NewDockerRunner(ctx context.Context, cfg DockerConfig) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker is not running: %w", err)
	}

	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &DockerRunner{cli: cli, image: cfg.Image, labels: labels}, nil
}

func (r *DockerRunner) Name() string { return "docker:" + r.image }

// Image returns the pandoc image the runner uses.
func (r *DockerRunner) Image() string { return r.image }

// Close closes the Docker client.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}

// Run creates the container, waits for pandoc to exit and removes it. A
// non-zero exit returns pandoc's output in the error.
func (r *DockerRunner) Run(ctx context.Context, workDir string, args []string) error {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", workDir, err)
	}
	if err := r.ensureImage(ctx); err != nil {
		return err
	}

	cfg := &container.Config{
		Image:      r.image,
		Entrypoint: []string{"pandoc"},
		Cmd:        args,
		WorkingDir: WorkDir,
		User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Labels:     r.labels,
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: abs,
			Target: WorkDir,
		}},
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		_ = r.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed waiting for container: %w", err)
		}
	case st := <-statusCh:
		if st.StatusCode != 0 {
			return fmt.Errorf("pandoc exited with status %d: %s", st.StatusCode, r.logs(ctx, resp.ID))
		}
	}
	return nil
}

func (r *DockerRunner) logs(ctx context.Context, id string) string {
	rc, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return err.Error()
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return err.Error()
	}
	return strings.TrimSpace(out.String())
}

// ensureImage pulls the pandoc image if not present. The pull is retried
// since registry hiccups are common on first use.
func (r *DockerRunner) ensureImage(ctx context.Context) error {
	if _, err := r.cli.ImageInspect(ctx, r.image); err == nil {
		return nil
	}

	return retry.Do(
		func() error {
			reader, err := r.cli.ImagePull(ctx, r.image, image.PullOptions{})
			if err != nil {
				return fmt.Errorf("failed to pull image %s: %w", r.image, err)
			}
			defer reader.Close()
			_, err = io.Copy(io.Discard, reader)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)
}
