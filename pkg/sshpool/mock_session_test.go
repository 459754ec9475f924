package sshpool

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// mockSession is an in-memory Session.
type mockSession struct {
	id       int64
	host     string
	closed   atomic.Bool
	closes   atomic.Int32
	runDelay time.Duration
	runFunc  func(cmd string) (CommandResult, error)
}

var _ Session = (*mockSession)(nil)

func (s *mockSession) IsClosed() bool { return s.closed.Load() }

func (s *mockSession) Close() error {
	s.closes.Add(1)
	s.closed.Store(true)
	return nil
}

func (s *mockSession) Run(ctx context.Context, cmd string) (CommandResult, error) {
	if s.runDelay > 0 {
		select {
		case <-ctx.Done():
			return CommandResult{ExitCode: -1}, ctx.Err()
		case <-time.After(s.runDelay):
		}
	}
	if s.runFunc != nil {
		return s.runFunc(cmd)
	}
	return CommandResult{Stdout: s.host + ": " + cmd}, nil
}

func (s *mockSession) Stat(context.Context, string) (os.FileInfo, error) {
	return nil, os.ErrNotExist
}

func (s *mockSession) Get(context.Context, string, string) (int64, error) { return 0, nil }
func (s *mockSession) Put(context.Context, string, string) (int64, error) { return 0, nil }

func (s *mockSession) Hash(context.Context, string) (string, error) { return "", nil }

func (s *mockSession) ReadFile(context.Context, string, int64) ([]byte, error) {
	return nil, nil
}

// mockConnector counts dials and can fail or block them.
type mockConnector struct {
	mu       sync.Mutex
	connects map[string]int
	nextID   int64
	sessions []*mockSession

	// failures holds errors returned by the next dials to a host, in order.
	failures map[string][]error

	// gate, when set for a host, blocks its dials until closed.
	gate map[string]chan struct{}

	// delay is added to every dial.
	delay time.Duration

	runFunc func(cmd string) (CommandResult, error)
}

func newMockConnector() *mockConnector {
	return &mockConnector{
		connects: make(map[string]int),
		failures: make(map[string][]error),
		gate:     make(map[string]chan struct{}),
	}
}

func (c *mockConnector) Connect(ctx context.Context, h *host.Record) (Session, error) {
	c.mu.Lock()
	c.connects[h.Name]++
	gate := c.gate[h.Name]
	var failure error
	if errs := c.failures[h.Name]; len(errs) > 0 {
		failure = errs[0]
		c.failures[h.Name] = errs[1:]
	}
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	s := &mockSession{id: c.nextID, host: h.Name, runFunc: c.runFunc}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *mockConnector) failNext(hostName string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[hostName] = append(c.failures[hostName], errs...)
}

func (c *mockConnector) block(hostName string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.gate[hostName] = ch
	return ch
}

func (c *mockConnector) count(hostName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects[hostName]
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingMetrics captures pool metric calls.
type recordingMetrics struct {
	mu        sync.Mutex
	dials     int
	dialErrs  int
	evictions map[string]int
	pooled    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{evictions: make(map[string]int)}
}

func (m *recordingMetrics) ObserveDial(_ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dials++
	if err != nil {
		m.dialErrs++
	}
}

func (m *recordingMetrics) ObserveEviction(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions[reason]++
}

func (m *recordingMetrics) SetPooled(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pooled = n
}

func (m *recordingMetrics) evicted(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions[reason]
}

// mockFileInfo implements os.FileInfo for testing.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// MockSFTPFile implements SFTPFile for testing.
type MockSFTPFile struct {
	content    []byte
	readOffset int
	closed     bool
	onClose    func([]byte)
	readErr    error
	writeErr   error
	closeErr   error
}

// NewMockSFTPFile creates a new mock SFTP file with the given content.
func NewMockSFTPFile(content []byte) *MockSFTPFile {
	return &MockSFTPFile{content: content}
}

func (f *MockSFTPFile) Read(p []byte) (n int, err error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.readOffset >= len(f.content) {
		return 0, io.EOF
	}
	n = copy(p, f.content[f.readOffset:])
	f.readOffset += n
	return n, nil
}

func (f *MockSFTPFile) Write(p []byte) (n int, err error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.content = append(f.content, p...)
	return len(p), nil
}

func (f *MockSFTPFile) Close() error {
	if !f.closed && f.onClose != nil {
		f.onClose(f.content)
	}
	f.closed = true
	return f.closeErr
}

// MockSFTPClient implements SFTPClientInterface for testing.
type MockSFTPClient struct {
	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	errors  map[string]error
	readErr error
	closed  bool
}

// NewMockSFTPClient creates a new mock SFTP client.
func NewMockSFTPClient() *MockSFTPClient {
	return &MockSFTPClient{
		files:  make(map[string][]byte),
		dirs:   make(map[string]bool),
		errors: make(map[string]error),
	}
}

var _ SFTPClientInterface = (*MockSFTPClient)(nil)

// SetError sets an error to be returned for a specific method.
func (m *MockSFTPClient) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// SetFile sets a file in the mock SFTP client.
func (m *MockSFTPClient) SetFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

func (m *MockSFTPClient) file(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path]
	return c, ok
}

func (m *MockSFTPClient) Open(path string) (SFTPFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Open"]; err != nil {
		return nil, err
	}
	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	f := NewMockSFTPFile(data)
	f.readErr = m.readErr
	return f, nil
}

func (m *MockSFTPClient) Create(path string) (SFTPFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Create"]; err != nil {
		return nil, err
	}
	m.files[path] = []byte{}
	f := NewMockSFTPFile(nil)
	f.writeErr = m.errors["Write"]
	f.closeErr = m.errors["FileClose"]
	f.onClose = func(content []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.files[path] = content
	}
	return f, nil
}

func (m *MockSFTPClient) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Remove"]; err != nil {
		return err
	}
	if _, ok := m.files[path]; !ok {
		return os.ErrNotExist
	}
	delete(m.files, path)
	return nil
}

func (m *MockSFTPClient) Stat(path string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Stat"]; err != nil {
		return nil, err
	}
	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(data)),
		mode:    0644,
		modTime: time.Now(),
	}, nil
}

func (m *MockSFTPClient) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["MkdirAll"]; err != nil {
		return err
	}
	m.dirs[path] = true
	return nil
}

func (m *MockSFTPClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var errPermission = &fs.PathError{Op: "open", Path: "/root/secret", Err: fs.ErrPermission}

var errConnRefused = errors.New("dial tcp 10.0.0.9:22: connect: connection refused")
