package sshpool

import "time"

// Metrics receives pool events. A nil Metrics disables collection.
type Metrics interface {
	// ObserveDial records one connect attempt and its outcome.
	ObserveDial(host string, duration time.Duration, err error)
	// ObserveEviction records one session removed from the pool.
	ObserveEviction(reason string)
	// SetPooled reports the number of sessions currently pooled.
	SetPooled(n int)
}

func observeDial(m Metrics, host string, d time.Duration, err error) {
	if m != nil {
		m.ObserveDial(host, d, err)
	}
}

func observeEviction(m Metrics, reason string) {
	if m != nil {
		m.ObserveEviction(reason)
	}
}

func setPooled(m Metrics, n int) {
	if m != nil {
		m.SetPooled(n)
	}
}
