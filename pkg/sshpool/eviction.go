package sshpool

import (
	"sort"
	"time"
)

// Eviction reasons reported to logs and metrics.
const (
	ReasonIdle     = "idle"
	ReasonClosed   = "closed"
	ReasonLRU      = "lru"
	ReasonReleased = "released"
	ReasonShutdown = "shutdown"
)

// SessionInfo is the policy's read-only view of one pooled session.
type SessionInfo struct {
	Host     string
	LastUsed time.Time
	Closed   bool

	// InUse is set while a caller has an operation running on the session.
	InUse bool
}

// Eviction names a session to remove and why.
type Eviction struct {
	Host   string
	Reason string
}

// EvictionPolicy decides which pooled sessions to drop on a sweep.
// It is called with the pool lock held and must not block.
type EvictionPolicy interface {
	Evict(sessions []SessionInfo, now time.Time) []Eviction
}

// EvictionPolicyFunc adapts a function to EvictionPolicy.
type EvictionPolicyFunc func(sessions []SessionInfo, now time.Time) []Eviction

// Evict calls f(sessions, now).
func (f EvictionPolicyFunc) Evict(sessions []SessionInfo, now time.Time) []Eviction {
	return f(sessions, now)
}

// IdleLRUPolicy drops closed sessions, then sessions idle longer than
// IdleTimeout, then the least recently used survivors until at most MaxSize
// remain. Zero values disable the corresponding rule.
//
// Sessions in use are only dropped when closed. They still count toward
// MaxSize, so the pool can briefly exceed it while they are busy.
type IdleLRUPolicy struct {
	IdleTimeout time.Duration
	MaxSize     int
}

// Evict implements EvictionPolicy.
func (p IdleLRUPolicy) Evict(sessions []SessionInfo, now time.Time) []Eviction {
	var evicted []Eviction
	survivors := make([]SessionInfo, 0, len(sessions))

	for _, s := range sessions {
		switch {
		case s.Closed:
			evicted = append(evicted, Eviction{Host: s.Host, Reason: ReasonClosed})
		case !s.InUse && p.IdleTimeout > 0 && now.Sub(s.LastUsed) > p.IdleTimeout:
			evicted = append(evicted, Eviction{Host: s.Host, Reason: ReasonIdle})
		default:
			survivors = append(survivors, s)
		}
	}

	if p.MaxSize <= 0 || len(survivors) <= p.MaxSize {
		return evicted
	}

	excess := len(survivors) - p.MaxSize
	candidates := make([]SessionInfo, 0, len(survivors))
	for _, s := range survivors {
		if !s.InUse {
			candidates = append(candidates, s)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LastUsed.Equal(candidates[j].LastUsed) {
			return candidates[i].Host < candidates[j].Host
		}
		return candidates[i].LastUsed.Before(candidates[j].LastUsed)
	})
	for _, s := range candidates[:min(excess, len(candidates))] {
		evicted = append(evicted, Eviction{Host: s.Host, Reason: ReasonLRU})
	}
	return evicted
}
