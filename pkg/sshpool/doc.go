// Package sshpool keeps authenticated SSH sessions warm across requests.
//
// This package provides:
//   - A Session abstraction over one SSH connection and its SFTP sub-client
//   - Connection pooling keyed by host name, one session per host
//   - Background idle eviction with a pluggable EvictionPolicy
//   - A single-retry acquire wrapper for flaky hosts
//   - Concurrent command fan-out across hosts
//
// # Basic Usage
//
//	connector := sshpool.NewSSHConnector(sshpool.SSHOptions{
//		KnownHostsFile: "~/.ssh/known_hosts",
//	})
//	pool := sshpool.NewPool(connector, sshpool.Options{
//		IdleTimeout: time.Minute,
//		MaxPoolSize: 32,
//	})
//	defer pool.Shutdown()
//
//	session, err := pool.AcquireWithRetry(ctx, record)
//	if err != nil {
//		return err
//	}
//	res, err := sshpool.RunWithTimeout(ctx, session, "uptime", 30*time.Second)
//
// Sessions are shared: do not Close a session obtained from the pool. Use
// Pool.Release to drop a host's session explicitly.
package sshpool
