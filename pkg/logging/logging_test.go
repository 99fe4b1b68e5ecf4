package logging

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfoAndStderr(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNew_ParsesLevel(t *testing.T) {
	logger, err := New(Options{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger, err := New(Options{Level: "not-a-level"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNew_WritesToRotatingFileWhenPathSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migration.log")
	logger, err := New(Options{Path: path})
	require.NoError(t, err)
	logger.Info("hello")
}

func TestNew_RejectsUnwritablePath(t *testing.T) {
	_, err := New(Options{Path: "/nonexistent-dir-xyz/migration.log"})
	assert.Error(t, err)
}
