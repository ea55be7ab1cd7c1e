package convert

import (
	"context"
	"log/slog"
)

// Detect picks a pandoc runner: the local binary when found, otherwise
// Docker. It returns nil when neither is usable. The returned close func
// is always safe to call.
func Detect(ctx context.Context, binary, image string, logger *slog.Logger) (Runner, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	local, err := NewLocalRunner(binary)
	if err == nil {
		return local, func() {}
	}
	logger.Debug("local pandoc not found", "error", err)

	docker, err := NewDockerRunner(ctx, DockerConfig{Image: image})
	if err != nil {
		logger.Debug("docker pandoc unavailable", "error", err)
		return nil, func() {}
	}
	return docker, func() { _ = docker.Close() }
}
