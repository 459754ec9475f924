package sshpool

import (
	"context"
	"io"
	"os"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// Session is one authenticated connection to a remote host.
//
// Implementations must be safe for concurrent use: a pooled Session is handed
// to every caller that acquires the same host.
type Session interface {
	// IsClosed reports whether the underlying transport has shut down.
	IsClosed() bool
	// Close tears down the transport. Closing twice is a no-op.
	Close() error
	// Run executes cmd and waits for it. A non-zero exit status is reported
	// in the result, not as an error.
	Run(ctx context.Context, cmd string) (CommandResult, error)
	// Stat returns information about a remote path.
	Stat(ctx context.Context, remotePath string) (os.FileInfo, error)
	// Get copies a remote file to a local path and returns the bytes written.
	Get(ctx context.Context, remotePath, localPath string) (int64, error)
	// Put copies a local file to a remote path and returns the bytes written.
	Put(ctx context.Context, localPath, remotePath string) (int64, error)
	// ReadFile reads up to maxBytes of a remote file (0 = no limit).
	ReadFile(ctx context.Context, remotePath string, maxBytes int64) ([]byte, error)
	// Hash returns the SHA-256 of a remote file as "sha256:<hex>".
	Hash(ctx context.Context, remotePath string) (string, error)
}

// CommandResult is the outcome of a remote command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Connector opens new sessions. The pool never dials on its own.
type Connector interface {
	Connect(ctx context.Context, h *host.Record) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, h *host.Record) (Session, error)

// Connect calls f(ctx, h).
func (f ConnectorFunc) Connect(ctx context.Context, h *host.Record) (Session, error) {
	return f(ctx, h)
}

// SFTPClientInterface abstracts SFTP operations for testing.
type SFTPClientInterface interface {
	Open(path string) (SFTPFile, error)
	Create(path string) (SFTPFile, error)
	Remove(path string) error
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string) error
	Close() error
}

// SFTPFile abstracts file operations for testing.
type SFTPFile interface {
	io.Reader
	io.Writer
	io.Closer
}
