package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/internal/telemetry"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

// DefaultTimeout bounds a whole transfer, both legs of a relay included.
const DefaultTimeout = 300 * time.Second

// Direction is the way a single-hop transfer moves bytes.
type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

// Valid reports whether d is Upload or Download.
func (d Direction) Valid() bool {
	return d == Upload || d == Download
}

// Executor moves files over pooled sessions.
type Executor struct {
	// StagingDir holds relay temp files. Empty means os.TempDir().
	StagingDir string

	// Timeout bounds each transfer (default 300s). Negative disables it.
	Timeout time.Duration

	// Metrics receives transfer outcomes. Optional.
	Metrics Metrics

	// Verify compares SHA-256 digests of both ends after each copy.
	Verify bool
}

// NewExecutor returns an Executor with default settings.
func NewExecutor() *Executor {
	return &Executor{Timeout: DefaultTimeout}
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout == 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := e.timeout(); t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}

// describe renders an I/O failure cause, naming the timeout when ctx ran out.
func (e *Executor) describe(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", e.timeout())
	}
	return err.Error()
}

// Transfer copies one file between this machine and the host behind s.
//
// An invalid direction is the only error return and happens before any I/O.
// Every I/O failure is reported as an unsuccessful Result.
func (e *Executor) Transfer(ctx context.Context, s sshpool.Session, sourcePath, destPath string, dir Direction) (Result, error) {
	if !dir.Valid() {
		return Result{}, &ValidationError{
			Field:   "direction",
			Message: fmt.Sprintf("%q must be %q or %q", dir, Upload, Download),
		}
	}

	strategy := RemoteToLocal
	if dir == Upload {
		strategy = LocalToRemote
	}

	ctx, span := telemetry.StartSpan(ctx, "transfer.single_hop",
		attribute.String(telemetry.AttrDirection, string(dir)),
		attribute.String(telemetry.AttrSource, sourcePath),
		attribute.String(telemetry.AttrTarget, destPath),
	)
	defer span.End()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var r Result
	if dir == Upload {
		r = e.upload(ctx, s, sourcePath, destPath)
	} else {
		r = e.download(ctx, s, sourcePath, destPath)
	}

	e.finish(ctx, strategy, r, start)
	return r, nil
}

func (e *Executor) upload(ctx context.Context, s sshpool.Session, sourcePath, destPath string) Result {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return failed("Local source %s not found: %v", sourcePath, err)
	}
	if info.IsDir() {
		return failed("Local source %s is a directory", sourcePath)
	}

	n, err := s.Put(ctx, sourcePath, destPath)
	if err != nil {
		return failed("Upload %s failed: %s", sourcePath, e.describe(ctx, err))
	}
	if e.Verify {
		if err := verify(ctx, s, sourcePath, destPath); err != nil {
			return failed("Upload %s failed: %s", sourcePath, e.describe(ctx, err))
		}
	}
	return succeeded(n, "Uploaded %s → %s", sourcePath, destPath)
}

func (e *Executor) download(ctx context.Context, s sshpool.Session, sourcePath, destPath string) Result {
	if _, err := s.Get(ctx, sourcePath, destPath); err != nil {
		return failed("Download %s failed: %s", sourcePath, e.describe(ctx, err))
	}

	if e.Verify {
		if err := verify(ctx, s, destPath, sourcePath); err != nil {
			os.Remove(destPath)
			return failed("Download %s failed: %s", sourcePath, e.describe(ctx, err))
		}
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return failed("Download %s failed: cannot stat %s: %v", sourcePath, destPath, err)
	}
	return succeeded(info.Size(), "Downloaded %s → %s", sourcePath, destPath)
}

func (e *Executor) finish(ctx context.Context, strategy Strategy, r Result, start time.Time) {
	observe(e.Metrics, strategy, r, time.Since(start))

	if r.Success {
		telemetry.SpanFromContext(ctx).SetAttributes(telemetry.Bytes(r.BytesTransferred))
		logger.Info("transfer complete",
			logger.KeyStrategy, strategy.String(),
			logger.Bytes(r.BytesTransferred),
			logger.KeyDurationMs, logger.Duration(start),
		)
		return
	}

	telemetry.RecordFailure(ctx, r.Message)
	logger.Warn("transfer failed",
		logger.KeyStrategy, strategy.String(),
		logger.Reason(r.Message),
		logger.KeyDurationMs, logger.Duration(start),
	)
}
