package sshpool

import (
	"sync"
	"time"
)

// minSweepInterval keeps very small idle timeouts from spinning the reaper.
const minSweepInterval = 10 * time.Millisecond

// reaper runs periodic eviction sweeps on its own goroutine.
//
// It is started when the first session is stored, exits on its own once a
// sweep leaves the pool empty, and can be stopped explicitly. A stopped
// reaper is never reused; the pool starts a fresh one when needed.
type reaper struct {
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newReaper(interval time.Duration) *reaper {
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return &reaper{
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// run calls sweep on every tick until sweep returns false or stop is called.
func (r *reaper) run(sweep func(*reaper) bool) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !sweep(r) {
				return
			}
		case <-r.stopCh:
			return
		}
	}
}

// stop ends the loop and waits for it. Safe to call more than once and after
// the loop has exited on its own.
func (r *reaper) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.done
}
