package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledDiscards(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: false, Output: &out})
	Info("hello", "k", 1)
	assert.Zero(t, out.Len())
}

func TestInit_TextOutput(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out, Level: slog.LevelDebug})
	t.Cleanup(func() { Init(Options{}) })

	Debug("pool grew", "capacity", 8)
	require.NotZero(t, out.Len())
	assert.Contains(t, out.String(), "pool grew")
	assert.Contains(t, out.String(), "capacity=8")
}

func TestInit_JSONOutput(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out, JSON: true})
	t.Cleanup(func() { Init(Options{}) })

	Warn("purge", "pages", 2)
	assert.Contains(t, out.String(), `"msg":"purge"`)
	assert.Contains(t, out.String(), `"pages":2`)
}

func TestInit_LevelFilters(t *testing.T) {
	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out, Level: slog.LevelWarn})
	t.Cleanup(func() { Init(Options{}) })

	Info("dropped")
	assert.Zero(t, out.Len())
	Error("kept")
	assert.Contains(t, out.String(), "kept")
}
