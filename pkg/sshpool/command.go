package sshpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// ErrCommandTimeout is returned when a remote command outlives its timeout.
var ErrCommandTimeout = errors.New("sshpool: command timed out")

// DefaultFanOut bounds concurrent hosts in RunOnHosts.
const DefaultFanOut = 8

// RunWithTimeout runs cmd on s, aborting after timeout (zero = no limit).
func RunWithTimeout(ctx context.Context, s Session, cmd string, timeout time.Duration) (CommandResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := s.Run(ctx, cmd)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w after %s: %s", ErrCommandTimeout, timeout, cmd)
	}
	return res, err
}

// HostRunResult is one host's outcome in RunOnHosts.
type HostRunResult struct {
	Result CommandResult
	Err    error
}

// RunOnHosts runs cmd on every host concurrently, at most limit at a time
// (DefaultFanOut when limit <= 0). Each host acquires its session with
// AcquireWithRetry; a failing host never cancels the others.
func (p *Pool) RunOnHosts(ctx context.Context, hosts []*host.Record, cmd string, timeout time.Duration, limit int) map[string]HostRunResult {
	if limit <= 0 {
		limit = DefaultFanOut
	}

	results := make(map[string]HostRunResult, len(hosts))
	out := make([]HostRunResult, len(hosts))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, h := range hosts {
		g.Go(func() error {
			s, err := p.AcquireWithRetry(ctx, h)
			if err != nil {
				out[i] = HostRunResult{Err: err}
				return nil
			}
			res, err := RunWithTimeout(ctx, s, cmd, timeout)
			out[i] = HostRunResult{Result: res, Err: err}
			if err != nil {
				logger.Warn("remote command failed", logger.Host(h.Name), logger.KeyCommand, cmd, logger.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, h := range hosts {
		results[h.Name] = out[i]
	}
	return results
}
