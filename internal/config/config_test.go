package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "./archives", cfg.Archive.Dir)
	require.Equal(t, 64, cfg.Engine.MailboxSize)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.ControlPlane.Enabled)
}
