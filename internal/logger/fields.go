package logger

import "log/slog"

// Standard field keys. Use these consistently so log lines can be queried.
const (
	KeyHost       = "host"        // Logical host name (pool key)
	KeyAddress    = "address"     // Dial target address:port
	KeyPath       = "path"        // Remote or local file path
	KeySource     = "source"      // Transfer source (host:path)
	KeyTarget     = "target"      // Transfer target (host:path)
	KeyStrategy   = "strategy"    // Transfer strategy
	KeyDirection  = "direction"   // upload or download
	KeyBytes      = "bytes"       // Bytes transferred
	KeyCommand    = "command"     // Remote command
	KeyExitCode   = "exit_code"   // Remote command exit status
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyReason     = "reason"      // Eviction reason
	KeyPoolSize   = "pool_size"   // Sessions currently pooled
	KeyEvicted    = "evicted"     // Number of sessions evicted in a pass
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// Host returns a slog.Attr for a logical host name
func Host(name string) slog.Attr {
	return slog.String(KeyHost, name)
}

// Path returns a slog.Attr for a file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Bytes returns a slog.Attr for a byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Reason returns a slog.Attr for an eviction reason
func Reason(r string) slog.Attr {
	return slog.String(KeyReason, r)
}

// Err returns a slog.Attr for an error; nil errors produce an empty value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
