package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestEncoding(t *testing.T) {
	assert.Equal(t, FormatConsole, encoding("Console"))
	assert.Equal(t, FormatJSON, encoding(""))
	assert.Equal(t, FormatJSON, encoding("xml"))
}

func TestNewHonoursLevel(t *testing.T) {
	log, err := New(Options{Level: "warn", Service: "concierge"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestChildLoggersKeepWrapper(t *testing.T) {
	log := NewNop()
	child := log.Named("chat").WithConversation("c-1", "conv-1")
	require.NotNil(t, child)
	require.NotNil(t, child.Logger)
}

func TestSetGlobalIgnoresNil(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	next := NewNop()
	SetGlobal(next)
	assert.Same(t, next, Global())

	SetGlobal(nil)
	assert.Same(t, next, Global())
}
