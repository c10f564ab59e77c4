package test

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

// NewLogger returns a logger that only prints if a test fails
func NewLogger(t *testing.T) *logger.Logger {
	return logger.NewLogger(zaptest.NewLogger(t))
}

// NewObservedLogger returns a logger that records every entry at debug level and above, together with the
// recorded entries for assertions. Entries are also written to the test log.
func NewObservedLogger(t *testing.T) (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	tee := zapcore.NewTee(core, zaptest.NewLogger(t).Core())
	return logger.NewLogger(zap.New(tee)), logs
}

// FieldString returns the string value of key on entry, or "" when absent.
func FieldString(entry observer.LoggedEntry, key string) string {
	v, ok := entry.ContextMap()[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
