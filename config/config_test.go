package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrated.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8560", cfg.ListenAddress)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be written")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrated.toml")
	require.NoError(t, os.WriteFile(path, []byte("Bogus = true\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{AdminToken: "secret", Administrator: "0x00000000000000000000000000000000000000a1"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":8560", cfg.ListenAddress)
	require.Equal(t, "./migrated-data", cfg.DataDir)

	cfg = &Config{AdminToken: "", Administrator: "0x00000000000000000000000000000000000000a1"}
	require.Error(t, cfg.Validate())

	cfg = &Config{AdminToken: "secret", Administrator: "not-hex"}
	require.Error(t, cfg.Validate())
}
