package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

// fakeSession is an in-memory remote filesystem.
type fakeSession struct {
	mu    sync.Mutex
	name  string
	files map[string][]byte

	statErr error
	getErr  error
	putErr  error

	// shortBy drops this many bytes from every download.
	shortBy int
	// delay blocks Get and Put until it elapses or ctx ends.
	delay time.Duration
	// hashOverride replaces the digest Hash reports.
	hashOverride string

	getCalls   int
	putCalls   int
	getTargets []string
}

var _ sshpool.Session = (*fakeSession)(nil)

func newFakeSession(name string) *fakeSession {
	return &fakeSession{name: name, files: make(map[string][]byte)}
}

func (f *fakeSession) setFile(p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = data
}

func (f *fakeSession) file(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.files[p]
	return d, ok
}

func (f *fakeSession) calls() (gets, puts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.putCalls
}

func (f *fakeSession) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.delay):
		return nil
	}
}

func (f *fakeSession) IsClosed() bool { return false }
func (f *fakeSession) Close() error   { return nil }

func (f *fakeSession) Run(context.Context, string) (sshpool.CommandResult, error) {
	return sshpool.CommandResult{}, errors.New("not supported")
}

func (f *fakeSession) Stat(_ context.Context, p string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return nil, f.statErr
	}
	data, ok := f.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return fakeInfo{name: filepath.Base(p), size: int64(len(data))}, nil
}

func (f *fakeSession) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	f.mu.Lock()
	f.getCalls++
	f.getTargets = append(f.getTargets, localPath)
	data, ok := f.files[remotePath]
	getErr := f.getErr
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	if getErr != nil {
		return 0, getErr
	}
	if !ok {
		return 0, &fs.PathError{Op: "open", Path: remotePath, Err: fs.ErrNotExist}
	}
	if f.shortBy > 0 && f.shortBy <= len(data) {
		data = data[:len(data)-f.shortBy]
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (f *fakeSession) Put(ctx context.Context, localPath, remotePath string) (int64, error) {
	f.mu.Lock()
	f.putCalls++
	putErr := f.putErr
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	if putErr != nil {
		return 0, putErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	f.setFile(remotePath, data)
	return int64(len(data)), nil
}

func (f *fakeSession) Hash(_ context.Context, p string) (string, error) {
	data, ok := f.file(p)
	if !ok {
		return "", fs.ErrNotExist
	}
	if f.hashOverride != "" {
		return f.hashOverride, nil
	}
	sum := sha256.Sum256(data)
	return sshpool.HashPrefix + hex.EncodeToString(sum[:]), nil
}

func (f *fakeSession) ReadFile(_ context.Context, p string, _ int64) ([]byte, error) {
	data, ok := f.file(p)
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) Mode() os.FileMode  { return 0644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

// fakeAcquirer returns preset sessions by host name.
type fakeAcquirer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	errs     map[string]error
	acquired []string
}

func (a *fakeAcquirer) AcquireWithRetry(_ context.Context, h *host.Record) (sshpool.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acquired = append(a.acquired, h.Name)
	if err := a.errs[h.Name]; err != nil {
		return nil, err
	}
	s, ok := a.sessions[h.Name]
	if !ok {
		return nil, errors.New("no session for " + h.Name)
	}
	return s, nil
}

// recordingMetrics captures ObserveTransfer calls.
type recordingMetrics struct {
	mu    sync.Mutex
	calls []metricCall
}

type metricCall struct {
	strategy string
	ok       bool
	bytes    int64
}

func (m *recordingMetrics) ObserveTransfer(strategy string, ok bool, bytes int64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricCall{strategy, ok, bytes})
}
