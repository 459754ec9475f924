package transfer

import "fmt"

// Result is the outcome of one transfer. Executors build exactly one Result
// per call; expected I/O failures are reported here rather than as errors.
type Result struct {
	Success          bool
	Message          string
	BytesTransferred int64
}

func failed(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

func succeeded(n int64, format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...), BytesTransferred: n}
}
