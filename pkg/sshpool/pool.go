package sshpool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmagar/scout-mcp-sub004/internal/logger"
	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// DefaultIdleTimeout is how long an unused session stays pooled.
const DefaultIdleTimeout = 60 * time.Second

// ErrPoolClosed is returned by Acquire after Shutdown.
var ErrPoolClosed = errors.New("sshpool: pool is shut down")

// Options configures a Pool.
type Options struct {
	// IdleTimeout closes sessions unused for longer than this (default 60s).
	// Negative disables idle eviction.
	IdleTimeout time.Duration

	// MaxPoolSize bounds the number of pooled sessions. Zero is unbounded.
	MaxPoolSize int

	// ConnectTimeout bounds each dial (default 10s).
	ConnectTimeout time.Duration

	// Policy overrides the default IdleLRUPolicy.
	Policy EvictionPolicy

	// Metrics receives pool events. Optional.
	Metrics Metrics

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// WithDefaults returns a copy of the options with default values applied.
func (o Options) WithDefaults() Options {
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.IdleTimeout < 0 {
		o.IdleTimeout = 0
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Policy == nil {
		o.Policy = IdleLRUPolicy{IdleTimeout: o.IdleTimeout, MaxSize: o.MaxPoolSize}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Pool caches one SSH session per host name.
//
// Acquire is safe for concurrent use. Callers for the same host share a single
// dial; callers for different hosts dial in parallel. All mutation of the
// session map, including background eviction, happens under mu.
//
// A session with an operation in flight is never evicted as idle or least
// recently used; only a dead transport, Release or Shutdown removes it.
type Pool struct {
	connector Connector
	opts      Options

	mu       sync.Mutex
	sessions map[string]*pooledSession
	reaper   *reaper
	closed   bool

	dials singleflight.Group
}

// pooledSession is both the map entry for one host and the Session handed to
// callers. Every operation through it holds an in-use count for its duration.
type pooledSession struct {
	pool    *Pool
	name    string
	session Session
	created time.Time

	// guarded by pool.mu
	lastUsed time.Time
	inUse    int
}

var _ Session = (*pooledSession)(nil)

// begin marks the session busy until the returned func is called. Both ends
// of an operation count as use.
func (ps *pooledSession) begin() func() {
	p := ps.pool
	p.mu.Lock()
	ps.inUse++
	ps.lastUsed = p.opts.Now()
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		ps.inUse--
		ps.lastUsed = p.opts.Now()
		p.mu.Unlock()
	}
}

func (ps *pooledSession) IsClosed() bool { return ps.session.IsClosed() }

func (ps *pooledSession) Close() error { return ps.session.Close() }

func (ps *pooledSession) Run(ctx context.Context, cmd string) (CommandResult, error) {
	defer ps.begin()()
	return ps.session.Run(ctx, cmd)
}

func (ps *pooledSession) Stat(ctx context.Context, remotePath string) (os.FileInfo, error) {
	defer ps.begin()()
	return ps.session.Stat(ctx, remotePath)
}

func (ps *pooledSession) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	defer ps.begin()()
	return ps.session.Get(ctx, remotePath, localPath)
}

func (ps *pooledSession) Put(ctx context.Context, localPath, remotePath string) (int64, error) {
	defer ps.begin()()
	return ps.session.Put(ctx, localPath, remotePath)
}

func (ps *pooledSession) Hash(ctx context.Context, remotePath string) (string, error) {
	defer ps.begin()()
	return ps.session.Hash(ctx, remotePath)
}

func (ps *pooledSession) ReadFile(ctx context.Context, remotePath string, maxBytes int64) ([]byte, error) {
	defer ps.begin()()
	return ps.session.ReadFile(ctx, remotePath, maxBytes)
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Total int
	Hosts []string
}

// NewPool creates a pool that opens sessions through connector.
// The background reaper is not started until the first session is stored.
func NewPool(connector Connector, opts Options) *Pool {
	return &Pool{
		connector: connector,
		opts:      opts.WithDefaults(),
		sessions:  make(map[string]*pooledSession),
	}
}

// Acquire returns an open session for h, dialing one if none is cached.
//
// A cached session that has closed, or sat unused past the idle timeout, is
// discarded and replaced. Acquire never retries; see AcquireWithRetry.
func (p *Pool) Acquire(ctx context.Context, h *host.Record) (Session, error) {
	if h == nil || h.Name == "" {
		return nil, errors.New("sshpool: host record has no name")
	}

	ps, err := p.cached(h.Name)
	if err != nil {
		return nil, err
	}
	if ps != nil {
		return ps, nil
	}

	ch := p.dials.DoChan(h.Name, func() (any, error) {
		return p.dial(ctx, h)
	})

	select {
	case <-ctx.Done():
		return nil, &ConnectionError{Host: h.Name, Addr: h.DialTarget(), Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		fresh := r.Val.(*pooledSession)
		p.touch(fresh)
		return fresh, nil
	}
}

// cached returns the live pooled session for name, if any. Stale sessions
// are removed and closed.
func (p *Pool) cached(name string) (*pooledSession, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	ps, ok := p.sessions[name]
	if !ok {
		p.mu.Unlock()
		return nil, nil
	}

	now := p.opts.Now()
	reason := ""
	switch {
	case ps.session.IsClosed():
		reason = ReasonClosed
	case ps.inUse == 0 && p.opts.IdleTimeout > 0 && now.Sub(ps.lastUsed) > p.opts.IdleTimeout:
		reason = ReasonIdle
	default:
		ps.lastUsed = now
		p.mu.Unlock()
		return ps, nil
	}

	delete(p.sessions, name)
	n := len(p.sessions)
	p.mu.Unlock()

	p.discard(name, ps.session, reason)
	setPooled(p.opts.Metrics, n)
	return nil, nil
}

// dial runs inside the singleflight group for h.Name, so at most one dial per
// host is in flight. The dial is detached from the first caller's
// cancellation and bounded by ConnectTimeout instead, so one impatient caller
// cannot fail the others waiting on the same flight.
func (p *Pool) dial(ctx context.Context, h *host.Record) (*pooledSession, error) {
	if ps, err := p.cached(h.Name); ps != nil || err != nil {
		return ps, err
	}

	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	logger.Debug("dialing SSH session", logger.Host(h.Name), logger.KeyAddress, h.DialTarget())

	s, err := p.connector.Connect(dialCtx, h)
	observeDial(p.opts.Metrics, h.Name, time.Since(start), err)
	if err != nil {
		if dialCtx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("connect timeout %s exceeded: %w", p.opts.ConnectTimeout, errors.Join(err, dialCtx.Err()))
		}
		return nil, &ConnectionError{Host: h.Name, Addr: h.DialTarget(), Err: err}
	}

	now := p.opts.Now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.Close()
		return nil, ErrPoolClosed
	}
	old := p.sessions[h.Name]
	ps := &pooledSession{pool: p, name: h.Name, session: s, lastUsed: now, created: now}
	p.sessions[h.Name] = ps
	n := len(p.sessions)
	p.startReaperLocked()
	p.mu.Unlock()

	if old != nil {
		p.discard(h.Name, old.session, ReasonClosed)
	}
	setPooled(p.opts.Metrics, n)
	logger.Info("SSH session opened", logger.Host(h.Name), logger.KeyDurationMs, logger.Duration(start), logger.KeyPoolSize, n)
	return ps, nil
}

// touch marks ps as just used if it is still pooled.
func (p *Pool) touch(ps *pooledSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions[ps.name] == ps {
		ps.lastUsed = p.opts.Now()
	}
}

// Release closes and removes the pooled session for name. Unknown names are
// ignored.
func (p *Pool) Release(name string) {
	p.mu.Lock()
	ps, ok := p.sessions[name]
	if ok {
		delete(p.sessions, name)
	}
	n := len(p.sessions)
	p.mu.Unlock()

	if !ok {
		return
	}
	p.discard(name, ps.session, ReasonReleased)
	setPooled(p.opts.Metrics, n)
}

// Shutdown closes every pooled session and stops the reaper. Acquire fails
// with ErrPoolClosed afterwards.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := p.sessions
	p.sessions = make(map[string]*pooledSession)
	r := p.reaper
	p.reaper = nil
	p.mu.Unlock()

	if r != nil {
		r.stop()
	}

	var errs []error
	for name, ps := range sessions {
		if err := ps.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		observeEviction(p.opts.Metrics, ReasonShutdown)
	}
	setPooled(p.opts.Metrics, 0)
	logger.Info("SSH pool shut down", logger.KeyEvicted, len(sessions))
	return errors.Join(errs...)
}

// CloseIdle runs one eviction sweep immediately.
func (p *Pool) CloseIdle() {
	p.sweep(nil)
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	hosts := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		hosts = append(hosts, name)
	}
	sort.Strings(hosts)
	return PoolStats{Total: len(p.sessions), Hosts: hosts}
}

// reaperRunning reports whether a background sweep loop is active.
func (p *Pool) reaperRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reaper != nil
}

func (p *Pool) startReaperLocked() {
	if p.reaper != nil || p.closed {
		return
	}
	interval := p.opts.IdleTimeout / 2
	if interval <= 0 {
		// Idle eviction disabled: still sweep for dead transports.
		interval = DefaultIdleTimeout / 2
	}
	r := newReaper(interval)
	p.reaper = r
	go r.run(p.sweep)
}

// sweep evicts what the policy selects. It returns false, and detaches the
// calling reaper, once the pool is empty.
func (p *Pool) sweep(r *reaper) bool {
	p.mu.Lock()
	now := p.opts.Now()
	infos := make([]SessionInfo, 0, len(p.sessions))
	for name, ps := range p.sessions {
		infos = append(infos, SessionInfo{
			Host:     name,
			LastUsed: ps.lastUsed,
			Closed:   ps.session.IsClosed(),
			InUse:    ps.inUse > 0,
		})
	}

	type victim struct {
		name    string
		session Session
		reason  string
	}
	var victims []victim
	for _, e := range p.opts.Policy.Evict(infos, now) {
		ps, ok := p.sessions[e.Host]
		if !ok {
			continue
		}
		delete(p.sessions, e.Host)
		victims = append(victims, victim{e.Host, ps.session, e.Reason})
	}

	n := len(p.sessions)
	keep := n > 0
	if !keep && r != nil && p.reaper == r {
		p.reaper = nil
	}
	p.mu.Unlock()

	for _, v := range victims {
		p.discard(v.name, v.session, v.reason)
	}
	if len(victims) > 0 {
		setPooled(p.opts.Metrics, n)
		logger.Debug("eviction sweep", logger.KeyEvicted, len(victims), logger.KeyPoolSize, n)
	}
	return keep
}

// discard closes a session that has already been removed from the map.
func (p *Pool) discard(name string, s Session, reason string) {
	if err := s.Close(); err != nil {
		logger.Debug("error closing SSH session", logger.Host(name), logger.Err(err))
	}
	observeEviction(p.opts.Metrics, reason)
	logger.Debug("SSH session evicted", logger.Host(name), logger.Reason(reason))
}
