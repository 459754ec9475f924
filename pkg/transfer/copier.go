package transfer

import (
	"context"
	"fmt"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/pkg/host"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

// Acquirer hands out sessions. *sshpool.Pool implements it.
type Acquirer interface {
	AcquireWithRetry(ctx context.Context, h *host.Record) (sshpool.Session, error)
}

// HostLookup maps a host name to its record.
type HostLookup func(name string) (*host.Record, error)

// Copier resolves a transfer route, acquires the sessions it needs and runs
// the matching executor.
type Copier struct {
	Sessions Acquirer
	Lookup   HostLookup
	Executor *Executor

	// CurrentHost is this machine's hostname. Empty means host.ServerHostname().
	CurrentHost string
}

// Copy moves sourcePath on sourceHost to targetPath on targetHost. Empty host
// names mean this machine.
//
// Routing, lookup and connection failures are returned as errors; transfer
// failures are reported in the Result.
func (c *Copier) Copy(ctx context.Context, sourceHost, sourcePath, targetHost, targetPath string) (Result, error) {
	current := c.CurrentHost
	if current == "" {
		current = host.ServerHostname()
	}

	route, err := Resolve(sourceHost, targetHost, current)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("transfer route resolved",
		logger.KeyStrategy, route.Strategy.String(),
		logger.KeySource, sourceHost+":"+sourcePath,
		logger.KeyTarget, targetHost+":"+targetPath,
	)

	switch route.Strategy {
	case LocalToRemote:
		s, err := c.session(ctx, route.TargetHost)
		if err != nil {
			return Result{}, err
		}
		return c.Executor.Transfer(ctx, s, sourcePath, targetPath, Upload)

	case RemoteToLocal:
		s, err := c.session(ctx, route.SourceHost)
		if err != nil {
			return Result{}, err
		}
		return c.Executor.Transfer(ctx, s, sourcePath, targetPath, Download)

	case RemoteToRemoteRelay:
		src, err := c.session(ctx, route.SourceHost)
		if err != nil {
			return Result{}, err
		}
		dst, err := c.session(ctx, route.TargetHost)
		if err != nil {
			return Result{}, err
		}
		return c.Executor.Relay(ctx, src, dst, sourcePath, targetPath), nil

	default:
		return Result{}, fmt.Errorf("unsupported transfer strategy %s", route.Strategy)
	}
}

func (c *Copier) session(ctx context.Context, name string) (sshpool.Session, error) {
	rec, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Sessions.AcquireWithRetry(ctx, rec)
}
