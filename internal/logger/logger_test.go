package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNewWritesToOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.With(String("run", "r1")).Info("hello")
	_ = l.Sync()
}

func TestFromZapKeepsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core)).With(String("component", "reader"))

	l.Warn("partial page", Int64("offset", 12))
	l.Debug("dropped by level")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "partial page", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "reader", ctx["component"])
	assert.Equal(t, int64(12), ctx["offset"])
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	assert.Same(t, l, l.With(String("a", "b")))
	assert.NoError(t, l.Sync())
}
