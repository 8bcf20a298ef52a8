package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetXDGDirs(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("HOME", "/home/ada")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "/var/state")
	t.Setenv("XDG_CACHE_HOME", "")

	dirs, err := GetXDGDirs()
	require.NoError(t, err)
	assert.Equal(t, "/home/ada/.config/ealain", dirs.ConfigHome)
	assert.Equal(t, "/var/state/ealain", dirs.StateHome)
	assert.Equal(t, "/home/ada/.cache/ealain", dirs.CacheHome)
}

func TestGetXDGDirs_DevMode(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ENV", "dev")

	dirs, err := GetXDGDirs()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".dev", appName), dirs.ConfigHome)
	assert.Equal(t, filepath.Join(dir, ".dev", appName, "cache"), dirs.CacheHome)
}
