package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh/agent"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/internal/telemetry"
	"github.com/jmagar/scout-mcp-sub004/pkg/config"
	"github.com/jmagar/scout-mcp-sub004/pkg/metrics"
	promMetrics "github.com/jmagar/scout-mcp-sub004/pkg/metrics/prometheus"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
	"github.com/jmagar/scout-mcp-sub004/pkg/transfer"
)

// app is the per-invocation runtime shared by subcommands.
type app struct {
	configPath string
	logLevel   string
	format     string

	cfg    *config.Config
	pool   *sshpool.Pool
	copier *transfer.Copier

	closers []func(context.Context) error
}

// loadConfig reads configuration and applies the --log-level override.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		config.ApplyDefaults(cfg)
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	a.cfg = cfg

	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// start wires telemetry, metrics, the SSH connector, the pool and the copier.
func (a *app) start(ctx context.Context) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	cfg := a.cfg

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "scout",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdownTracing)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Port); err != nil {
				logger.Warn("metrics server stopped", logger.Err(err))
			}
		}()
		a.closers = append(a.closers, func(context.Context) error {
			cancel()
			return nil
		})
	}

	sshOpts := sshpool.SSHOptions{
		DefaultUser:           cfg.SSH.DefaultUser,
		DefaultIdentityFile:   cfg.SSH.DefaultIdentity,
		KnownHostsFile:        cfg.SSH.KnownHostsFile,
		InsecureIgnoreHostKey: cfg.SSH.InsecureIgnoreHostKey,
		Timeout:               cfg.Pool.ConnectTimeout,
	}
	if cfg.SSH.UseAgent {
		if ag, closer := openAgent(); ag != nil {
			sshOpts.Agent = ag
			a.closers = append(a.closers, func(context.Context) error { return closer.Close() })
		}
	}

	a.pool = sshpool.NewPool(sshpool.NewSSHConnector(sshOpts), sshpool.Options{
		IdleTimeout:    cfg.Pool.IdleTimeout,
		MaxPoolSize:    cfg.Pool.MaxPoolSize,
		ConnectTimeout: cfg.Pool.ConnectTimeout,
		Metrics:        promMetrics.NewPoolMetrics(),
	})
	a.closers = append(a.closers, func(context.Context) error { return a.pool.Shutdown() })

	executor := transfer.NewExecutor()
	executor.StagingDir = cfg.Transfer.StagingDir
	executor.Timeout = cfg.Pool.TransferTimeout
	executor.Metrics = promMetrics.NewTransferMetrics()
	executor.Verify = cfg.Transfer.Verify

	a.copier = &transfer.Copier{
		Sessions: a.pool,
		Lookup:   cfg.Host,
		Executor: executor,
	}
	return nil
}

// openAgent connects to $SSH_AUTH_SOCK. A missing or broken agent is logged
// and skipped; identity files still apply.
func openAgent() (agent.Agent, io.Closer) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		logger.Debug("ssh.use_agent set but SSH_AUTH_SOCK is empty")
		return nil, nil
	}
	ag, closer, err := sshpool.DialAgent(socket)
	if err != nil {
		logger.Warn("ssh agent unavailable", logger.Err(err))
		return nil, nil
	}
	return ag, closer
}

// close runs closers in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
