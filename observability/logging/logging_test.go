package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "playmintd", "test", slog.LevelInfo)
	logger.Info("hello", "component", "engine")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "playmintd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWithFileWritesRotatingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "playmintd.log")
	logger, closer := SetupWithFile("playmintd", "", "debug", FileConfig{Path: path, MaxSizeMB: 1})
	logger.Debug("debug line")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "debug line")
}

func TestSetupWithFileFallsBackWhenDirectoryFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))
	path := filepath.Join(blocker, "logs", "playmintd.log")

	logger, closer := SetupWithFile("playmintd", "", "info", FileConfig{Path: path})
	require.NotNil(t, logger)
	require.NoError(t, closer.Close())
	_, err := os.Stat(path)
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("secret", "abc").Value.String())
	require.Equal(t, "engine", MaskField("component", "engine").Value.String())
	require.Equal(t, "", MaskField("secret", "").Value.String())
}
