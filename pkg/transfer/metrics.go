package transfer

import "time"

// Metrics receives transfer outcomes. A nil Metrics disables collection.
type Metrics interface {
	ObserveTransfer(strategy string, ok bool, bytes int64, duration time.Duration)
}

func observe(m Metrics, strategy Strategy, r Result, d time.Duration) {
	if m != nil {
		m.ObserveTransfer(strategy.String(), r.Success, r.BytesTransferred, d)
	}
}
