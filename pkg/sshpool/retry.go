package sshpool

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// ConnectionError is returned when a session to a host cannot be opened.
type ConnectionError struct {
	Host string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s (%s): %v", e.Host, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the connect attempt ran out of time.
func (e *ConnectionError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// RetryError is returned by AcquireWithRetry when both attempts fail.
type RetryError struct {
	Host   string
	First  error
	Second error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed to connect to %s after retry: first attempt: %v; retry: %v", e.Host, e.First, e.Second)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *RetryError) Unwrap() []error { return []error{e.First, e.Second} }

// AcquireWithRetry acquires a session for h, retrying exactly once.
//
// On the first failure any pooled session for h is released so the retry
// always dials fresh. Every connect failure gets the one retry, including
// auth and host key errors. A cancelled ctx or a shut-down pool is returned
// immediately without retrying.
func (p *Pool) AcquireWithRetry(ctx context.Context, h *host.Record) (Session, error) {
	s, err := p.Acquire(ctx, h)
	if err == nil {
		return s, nil
	}
	if ctx.Err() != nil || errors.Is(err, ErrPoolClosed) || h == nil {
		return nil, err
	}

	logger.Warn("SSH connect failed, retrying once",
		logger.Host(h.Name),
		logger.Attempt(1),
		logger.Err(err),
	)

	p.Release(h.Name)

	s, retryErr := p.Acquire(ctx, h)
	if retryErr != nil {
		logger.Error("SSH connect retry failed", logger.Host(h.Name), logger.Attempt(2), logger.Err(retryErr))
		return nil, &RetryError{Host: h.Name, First: err, Second: retryErr}
	}
	return s, nil
}
