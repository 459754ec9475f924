package sshpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// DefaultConnectTimeout bounds the TCP dial plus SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

// defaultIdentityFiles are tried in order when a host has no identity file.
var defaultIdentityFiles = []string{
	"~/.ssh/id_ed25519",
	"~/.ssh/id_ecdsa",
	"~/.ssh/id_rsa",
}

// SSHOptions configures how SSHConnector authenticates and verifies hosts.
type SSHOptions struct {
	// DefaultUser is used for hosts that have no user configured.
	DefaultUser string

	// DefaultIdentityFile is used for hosts without an identity file.
	// When empty the usual ~/.ssh/id_* keys are tried.
	DefaultIdentityFile string

	// KnownHostsFile is the path to a known_hosts file for host key verification.
	// If not set, defaults to ~/.ssh/known_hosts if it exists.
	KnownHostsFile string

	// InsecureIgnoreHostKey skips host key verification.
	// WARNING: This is insecure and should only be used for testing.
	InsecureIgnoreHostKey bool

	// Timeout bounds the TCP dial and SSH handshake (default 10s).
	Timeout time.Duration

	// Agent, when set, is offered before any identity file.
	Agent agent.Agent
}

// SSHConnector dials real SSH servers and opens an SFTP sub-client on each
// connection.
type SSHConnector struct {
	opts SSHOptions
}

var _ Connector = (*SSHConnector)(nil)

// NewSSHConnector creates a connector with the given options.
func NewSSHConnector(opts SSHOptions) *SSHConnector {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultConnectTimeout
	}
	return &SSHConnector{opts: opts}
}

// Connect dials h and returns a ready session.
//
// The dial and handshake are bounded by both ctx and the connector timeout.
func (c *SSHConnector) Connect(ctx context.Context, h *host.Record) (Session, error) {
	user := h.User
	if user == "" {
		user = c.opts.DefaultUser
	}
	if user == "" {
		return nil, fmt.Errorf("no SSH user configured for host %s", h.Name)
	}

	authMethods, err := c.buildAuthMethods(h)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := c.buildHostKeyCallback(h)
	if err != nil {
		return nil, fmt.Errorf("failed to configure host key verification: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.opts.Timeout,
	}

	addr := h.DialTarget()
	dialer := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	// Abort the handshake if the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		stop()
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("SSH handshake with %s aborted: %w", addr, ctxErr)
		}
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}
	if !stop() {
		ncc.Close()
		return nil, fmt.Errorf("SSH handshake with %s aborted: %w", addr, ctx.Err())
	}
	_ = conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(ncc, chans, reqs)

	rawSftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	return newSSHSession(h.Name, sshClient, &SFTPClientWrapper{client: rawSftpClient}), nil
}

// SFTPClientWrapper wraps the real sftp.Client to implement SFTPClientInterface.
type SFTPClientWrapper struct {
	client *sftp.Client
}

var _ SFTPClientInterface = (*SFTPClientWrapper)(nil)

func (w *SFTPClientWrapper) Open(path string) (SFTPFile, error)    { return w.client.Open(path) }
func (w *SFTPClientWrapper) Create(path string) (SFTPFile, error)  { return w.client.Create(path) }
func (w *SFTPClientWrapper) Remove(path string) error              { return w.client.Remove(path) }
func (w *SFTPClientWrapper) Stat(path string) (os.FileInfo, error) { return w.client.Stat(path) }
func (w *SFTPClientWrapper) MkdirAll(path string) error            { return w.client.MkdirAll(path) }
func (w *SFTPClientWrapper) Close() error                          { return w.client.Close() }

// sshSession is the production Session: one SSH connection plus its SFTP
// sub-client.
type sshSession struct {
	host       string
	sshClient  *ssh.Client
	sftpClient SFTPClientInterface

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Session = (*sshSession)(nil)

func newSSHSession(hostName string, sshClient *ssh.Client, sftpClient SFTPClientInterface) *sshSession {
	s := &sshSession{
		host:       hostName,
		sshClient:  sshClient,
		sftpClient: sftpClient,
	}
	if sshClient != nil {
		go func() {
			err := sshClient.Wait()
			s.closed.Store(true)
			logger.Debug("SSH connection closed", logger.Host(hostName), logger.Err(err))
		}()
	}
	return s
}

// IsClosed reports whether the SSH transport has shut down.
func (s *sshSession) IsClosed() bool {
	return s.closed.Load()
}

// Close closes SFTP and SSH connections.
func (s *sshSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.sftpClient != nil {
			s.sftpClient.Close()
		}
		if s.sshClient != nil {
			err = s.sshClient.Close()
		}
	})
	return err
}

// Run executes cmd in a new SSH channel.
func (s *sshSession) Run(ctx context.Context, cmd string) (CommandResult, error) {
	result := CommandResult{ExitCode: -1}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("operation cancelled: %w", err)
	}
	if s.sshClient == nil {
		return result, errors.New("no SSH connection")
	}

	session, err := s.sshClient.NewSession()
	if err != nil {
		return result, fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return result, fmt.Errorf("command cancelled: %w", ctx.Err())
	case err := <-done:
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		if err == nil {
			result.ExitCode = 0
			return result, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("failed to run command: %w", err)
	}
}

// Stat returns information about a remote file.
func (s *sshSession) Stat(ctx context.Context, remotePath string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation cancelled: %w", err)
	}
	return s.sftpClient.Stat(remotePath)
}

// Get downloads remotePath into localPath. A partially written local file is
// removed on failure.
func (s *sshSession) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("operation cancelled: %w", err)
	}

	remoteFile, err := s.sftpClient.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file: %w", err)
	}
	defer remoteFile.Close()

	if dir := filepath.Dir(localPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create local directory %s: %w", dir, err)
		}
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file: %w", err)
	}

	n, err := copyWithContext(ctx, localFile, remoteFile)
	closeErr := localFile.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close local file: %w", closeErr)
	}
	if err != nil {
		os.Remove(localPath)
		return 0, fmt.Errorf("download cancelled or failed: %w", err)
	}
	return n, nil
}

// Put uploads localPath to remotePath, creating remote parent directories.
// A partially written remote file is removed on failure.
func (s *sshSession) Put(ctx context.Context, localPath, remotePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("operation cancelled: %w", err)
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	remoteDir := path.Dir(remotePath)
	if remoteDir != "" && remoteDir != "/" && remoteDir != "." {
		if err := s.sftpClient.MkdirAll(remoteDir); err != nil {
			return 0, fmt.Errorf("failed to create remote directory %s: %w", remoteDir, err)
		}
	}

	remoteFile, err := s.sftpClient.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file: %w", err)
	}

	n, err := copyWithContext(ctx, remoteFile, localFile)
	closeErr := remoteFile.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close remote file: %w", closeErr)
	}
	if err != nil {
		s.sftpClient.Remove(remotePath)
		return 0, fmt.Errorf("upload cancelled or failed: %w", err)
	}
	return n, nil
}

// ReadFile reads the content of a remote file.
func (s *sshSession) ReadFile(ctx context.Context, remotePath string, maxBytes int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation cancelled: %w", err)
	}

	file, err := s.sftpClient.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes)
	}

	var buf bytes.Buffer
	if _, err := copyWithContext(ctx, &buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read remote file: %w", err)
	}
	return buf.Bytes(), nil
}

// Hash streams a remote file through SHA-256.
func (s *sshSession) Hash(ctx context.Context, remotePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("operation cancelled: %w", err)
	}

	file, err := s.sftpClient.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to open remote file: %w", err)
	}
	defer file.Close()

	sum, err := hashReader(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to hash remote file: %w", err)
	}
	return sum, nil
}

// copyWithContext runs io.Copy in a goroutine so a stalled transfer can be
// abandoned when ctx ends.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	type copyResult struct {
		n   int64
		err error
	}
	done := make(chan copyResult, 1)
	go func() {
		n, err := io.Copy(dst, src)
		done <- copyResult{n, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		return r.n, r.err
	}
}

// Helper functions

func (c *SSHConnector) buildHostKeyCallback(h *host.Record) (ssh.HostKeyCallback, error) {
	if c.opts.InsecureIgnoreHostKey {
		logger.Warn("SSH host key verification disabled", logger.Host(h.Name))
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if c.opts.KnownHostsFile != "" {
		expandedPath := ExpandPath(c.opts.KnownHostsFile)
		callback, err := knownhosts.New(expandedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts file %s: %w", expandedPath, err)
		}
		return callback, nil
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		defaultKnownHosts := filepath.Join(homeDir, ".ssh", "known_hosts")
		if _, err := os.Stat(defaultKnownHosts); err == nil {
			callback, err := knownhosts.New(defaultKnownHosts)
			if err == nil {
				return callback, nil
			}
			logger.Warn("could not parse known_hosts file", logger.Path(defaultKnownHosts), logger.Err(err))
		}
	}

	logger.Warn("no known_hosts file found, host key verification disabled", logger.Host(h.Name))
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return nil
	}, nil
}

// buildAuthMethods orders auth: agent signers first, then identity files.
func (c *SSHConnector) buildAuthMethods(h *host.Record) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if c.opts.Agent != nil {
		methods = append(methods, ssh.PublicKeysCallback(c.opts.Agent.Signers))
	}

	var candidates []string
	switch {
	case h.IdentityFile != "":
		candidates = []string{h.IdentityFile}
	case c.opts.DefaultIdentityFile != "":
		candidates = []string{c.opts.DefaultIdentityFile}
	default:
		candidates = defaultIdentityFiles
	}

	var signers []ssh.Signer
	var lastErr error
	for _, keyPath := range candidates {
		signer, err := loadSigner(keyPath)
		if err != nil {
			lastErr = err
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("no usable SSH private key for host %s: %w", h.Name, lastErr)
		}
		return nil, fmt.Errorf("no SSH authentication method configured for host %s", h.Name)
	}
	return methods, nil
}

// DialAgent connects to the SSH agent listening on socket (usually
// $SSH_AUTH_SOCK). The returned closer releases the socket.
func DialAgent(socket string) (agent.ExtendedAgent, io.Closer, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SSH agent at %s: %w", socket, err)
	}
	return agent.NewClient(conn), conn, nil
}

func loadSigner(keyPath string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(ExpandPath(keyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH private key %s: %w", keyPath, err)
	}
	return signer, nil
}

// ExpandPath expands ~ to home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, p[2:])
		}
	}
	return p
}
