// Package transfer moves files between this machine and remote hosts.
//
// Resolve picks a Strategy for a source/target pair. Executor.Transfer runs a
// single-hop upload or download over one session; Executor.Relay copies
// between two remote hosts by staging the file locally. Copier ties both to a
// session pool.
//
// Executors never return errors for I/O failures: they are reported in the
// Result so callers can tell which leg failed.
package transfer
