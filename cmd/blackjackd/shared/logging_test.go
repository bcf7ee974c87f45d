package shared

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blackjackd.log")
	logger := SetupLogger("debug", path)

	logger.Info("round settled", "table", "main")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "round settled")
}

func TestSetupLoggerFallsBackToInfo(t *testing.T) {
	logger := SetupLogger("shouting", "")
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
}
