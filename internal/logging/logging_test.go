package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/volhedge/internal/config"
)

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closeFn()

	logger.WithField("mode", "short").Debug("Replay progress")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "short", entry["mode"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.LoggingConfig{Level: "chatty", Format: "text"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}

func TestFileHookWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "volhedge.log")
	var buf bytes.Buffer
	logger, closeFn, err := New(config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)

	logger.WithField("bar", 40).Warn("Kill switch triggered, flattening")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Kill switch triggered")
	assert.Contains(t, buf.String(), "Kill switch triggered")
}
