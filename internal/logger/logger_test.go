package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(4, &buf)

	l.Info("hidden")
	l.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

func TestNewWithFile(t *testing.T) {
	t.Run("no path falls back to stdout", func(t *testing.T) {
		l := NewWithFile(0, FileOptions{})
		require.NotNil(t, l)
	})

	t.Run("writes to rotated file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profilesync.log")
		l := NewWithFile(0, FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1})
		l.Info("written to file")

		assert.FileExists(t, path)
	})
}
