package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Speshl/gorrc_remote/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	closer, err := Setup(config.LogConfig{Level: "debug"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	closer, err = Setup(config.LogConfig{Level: "chatty"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, log.InfoLevel, log.GetLevel(), "unknown levels fall back to info")
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "remote.log")
	closer, err := Setup(config.LogConfig{Level: "info", File: path})
	require.NoError(t, err)

	log.Info("drive link up")
	require.NoError(t, closer.Close())
	log.SetOutput(os.Stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "drive link up")
}
