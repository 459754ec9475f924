package transfer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/internal/telemetry"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

// relayPrefix names staging files so stray ones are easy to find.
const relayPrefix = "scout-relay-"

// Relay copies sourcePath on src to targetPath on dst through a temp file on
// this machine.
//
// The temp file is removed before Relay returns on every path. A failed
// download never reaches the upload leg. A download whose size differs from
// the source's reported size is treated as failed.
func (e *Executor) Relay(ctx context.Context, src, dst sshpool.Session, sourcePath, targetPath string) Result {
	ctx, span := telemetry.StartSpan(ctx, "transfer.relay",
		attribute.String(telemetry.AttrStrategy, RemoteToRemoteRelay.String()),
		attribute.String(telemetry.AttrSource, sourcePath),
		attribute.String(telemetry.AttrTarget, targetPath),
	)
	defer span.End()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	r := e.relay(ctx, src, dst, sourcePath, targetPath)
	e.finish(ctx, RemoteToRemoteRelay, r, start)
	return r
}

func (e *Executor) relay(ctx context.Context, src, dst sshpool.Session, sourcePath, targetPath string) Result {
	tmp, err := os.CreateTemp(e.StagingDir, relayPrefix+uuid.NewString()+"-*")
	if err != nil {
		return failed("Relay staging failed: %v", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer removeStaging(tmpPath)

	info, err := src.Stat(ctx, sourcePath)
	if err != nil {
		return failed("Download %s failed: %s", sourcePath, e.describe(ctx, err))
	}
	if info.IsDir() {
		return failed("Download %s failed: source is a directory", sourcePath)
	}
	expected := info.Size()

	if _, err := src.Get(ctx, sourcePath, tmpPath); err != nil {
		return failed("Download %s failed: %s", sourcePath, e.describe(ctx, err))
	}

	staged, err := os.Stat(tmpPath)
	if err != nil {
		return failed("Download %s failed: %v", sourcePath, err)
	}
	size := staged.Size()
	if size != expected {
		return failed("Download %s incomplete: got %d of %d bytes", sourcePath, size, expected)
	}
	logger.Debug("relay download staged", logger.Path(tmpPath), logger.Bytes(size))

	if _, err := dst.Put(ctx, tmpPath, targetPath); err != nil {
		return failed("Upload %s failed: %s", targetPath, e.describe(ctx, err))
	}
	if e.Verify {
		if err := verify(ctx, dst, tmpPath, targetPath); err != nil {
			return failed("Upload %s failed: %s", targetPath, e.describe(ctx, err))
		}
	}

	return succeeded(size, "Transferred %s → %s (via relay)", sourcePath, targetPath)
}

func removeStaging(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove relay staging file", logger.Path(p), logger.Err(err))
	}
}
