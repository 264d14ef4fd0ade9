package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, LevelFromString("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, LevelFromString("warning"))
	require.Equal(t, zapcore.ErrorLevel, LevelFromString("error"))
	require.Equal(t, zapcore.InfoLevel, LevelFromString("verbose"))
}

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	lg, err := newLogger(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	lg.Info("dropped")
	lg.Warn("kept")
	require.NoError(t, lg.Sync())

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, `"msg":"kept"`)
}

func TestNewWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "portal.log")
	var buf bytes.Buffer
	lg, err := newLogger(Config{Level: "info", FilePath: path}, &buf)
	require.NoError(t, err)

	lg.Info("to file")
	require.NoError(t, lg.Sync())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "to file"))
}
