// Package goroutine holds panic recovery and leak checking helpers for
// worker goroutines.
package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// StackTraceBufferSize is the buffer size for stack trace collection
const StackTraceBufferSize = 4096

// PanicError is a recovered panic turned into an error.
type PanicError struct {
	Name  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// Recover recovers from a panic in the calling goroutine and logs it.
// If logger is nil, falls back to stderr to ensure the panic is recorded.
// It must be called directly by defer.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		logPanic(newPanicError(name, r), logger)
	}
}

// RecoverInto is Recover that also stores the panic in *errp as a
// *PanicError, so the worker can report it like any other failure.
// It must be called directly by defer.
func RecoverInto(name string, logger *zap.SugaredLogger, errp *error) {
	if r := recover(); r != nil {
		pe := newPanicError(name, r)
		logPanic(pe, logger)
		if errp != nil {
			*errp = pe
		}
	}
}

func newPanicError(name string, value any) *PanicError {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)
	return &PanicError{Name: name, Value: value, Stack: string(buf[:n])}
}

func logPanic(pe *PanicError, logger *zap.SugaredLogger) {
	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", pe.Name,
			"panic", pe.Value,
			"stack", pe.Stack)
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", pe.Name, pe.Value, pe.Stack)
}
