package goroutine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_NoPanic(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	func() {
		defer Recover("test-goroutine", logger)
	}()
}

func TestRecover_LogsPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("rule-worker", logger)
		panic("test panic message")
	}()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Goroutine panic recovered", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "rule-worker", fields["goroutine"])
	assert.Equal(t, "test panic message", fields["panic"])
	assert.Contains(t, fields["stack"], "goroutine")
}

func TestRecover_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("no-logger", nil)
		panic(42)
	})
}

func TestRecoverInto_SetsError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	run := func() (err error) {
		defer RecoverInto("rule:web-visit", logger, &err)
		panic(errors.New("index out of range"))
	}

	err := run()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "rule:web-visit", pe.Name)
	assert.Contains(t, pe.Error(), "index out of range")
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, 1, logs.Len())
}

func TestRecoverInto_NoPanicKeepsError(t *testing.T) {
	sentinel := errors.New("ordinary failure")
	run := func() (err error) {
		defer RecoverInto("worker", nil, &err)
		return sentinel
	}

	assert.ErrorIs(t, run(), sentinel)
}

func TestAssertNoLeaks_NoLeak(t *testing.T) {
	AssertNoLeaks(t)

	done := make(chan struct{})
	go func() { close(done) }()
	<-done
}
