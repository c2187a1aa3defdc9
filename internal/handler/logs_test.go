package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"homewatch/internal/config"
	"homewatch/internal/logger"
)

func newLogMux(t *testing.T) (*http.ServeMux, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := logger.NewLogger(&config.Config{LogDirectory: dir})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /logs/{level}", ShowLogsHandler(l))
	mux.HandleFunc("POST /logs/{level}/clear", ClearLogsHandler(l))
	return mux, dir
}

func TestShowLogsHandler(t *testing.T) {
	mux, dir := newLogMux(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, logger.WarningFile), []byte("camera offline\n"), 0644))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "camera offline\n", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/error", nil))
	require.Equal(t, http.StatusNotFound, rec.Code, "file not written yet")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/verbose", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearLogsHandler(t *testing.T) {
	mux, dir := newLogMux(t)
	path := filepath.Join(dir, logger.ErrorFile)
	require.NoError(t, os.WriteFile(path, []byte("model failed\n"), 0644))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/error/clear", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, data)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/verbose/clear", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code, "missing file")
}
