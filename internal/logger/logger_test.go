package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"homewatch/internal/config"
)

func TestTestLogger_WritesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)

	l.Info("model loaded from %s", "/models/presence")
	l.Warning("no model configured")
	l.Error("inference failed: %v", "boom")

	out := buf.String()
	require.Contains(t, out, "model loaded from /models/presence")
	require.Contains(t, out, "no model configured")
	require.Contains(t, out, "inference failed: boom")
}

func TestLogger_ReportsCallingLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)

	l.Info("hello")
	_, _, line, _ := runtime.Caller(0)
	require.Contains(t, buf.String(), fmt.Sprintf("[logger_test.go:%d]", line-1))
	require.NotContains(t, buf.String(), "logger.go:")

	buf.Reset()
	l.WithField("camera", "kitchen").Warn("camera offline")
	_, _, line, _ = runtime.Caller(0)
	out := buf.String()
	require.Contains(t, out, fmt.Sprintf("[logger_test.go:%d]", line-1))
	require.Contains(t, out, "[kitchen]")
	require.Contains(t, out, "camera offline")
}

func TestNewLogger_RoutesToLevelFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(&config.Config{LogDirectory: dir})
	require.NoError(t, err)

	l.Info("info line")
	l.Warning("warning line")
	l.Error("error line")

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	require.NoError(t, err)
	require.Contains(t, string(info), "info line")
	require.NotContains(t, string(info), "error line")

	warn, err := os.ReadFile(filepath.Join(dir, WarningFile))
	require.NoError(t, err)
	require.Contains(t, string(warn), "warning line")

	errs, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	require.Contains(t, string(errs), "error line")
}

func TestCleanLogs_TruncatesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(&config.Config{LogDirectory: dir})
	require.NoError(t, err)

	l.Error("first error")
	require.NoError(t, l.CleanLogs(ErrorFile))

	errs, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestCleanLogs_MissingFile(t *testing.T) {
	l, err := NewLogger(&config.Config{LogDirectory: t.TempDir()})
	require.NoError(t, err)
	require.Error(t, l.CleanLogs("nothing.log"))
}
