package config

import (
	"os"
	"path/filepath"
	. "testing"

	"github.com/lindend/dabble/internal/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaults(t *T) {
	cfg, err := Load([]string{"inspect"}, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "segmented", cfg.Engine)
	assert.Equal(t, 100, cfg.Options.MaxSegmentSize)
	assert.Equal(t, 100, cfg.Options.MaxMemtableSize)
	assert.Equal(t, 10, cfg.Options.SparseIndexSize)
	assert.Equal(t, kv.KeepSuperseded, cfg.Options.Reclaim)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, []string{"inspect"}, cfg.Args)
}

func TestEnvironment(t *T) {
	t.Setenv("DABBLE_ENGINE", "lsm")
	t.Setenv("DABBLE_MAX_MEMTABLE_SIZE", "7")
	t.Setenv("DABBLE_RECLAIM", "reclaim")
	t.Setenv("DABBLE_LOG_LEVEL", "debug")

	cfg, err := Load(nil, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "lsm", cfg.Engine)
	assert.Equal(t, 7, cfg.Options.MaxMemtableSize)
	assert.Equal(t, kv.ReclaimSuperseded, cfg.Options.Reclaim)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Empty(t, cfg.Args)
}

func TestFlagsOverrideEnvironment(t *T) {
	t.Setenv("DABBLE_ENGINE", "lsm")
	t.Setenv("DABBLE_ITERATIONS", "5")

	cfg, err := Load([]string{"-engine", "json", "-max-segment-size", "2", "bench"}, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Engine)
	assert.Equal(t, 5, cfg.Iterations)
	assert.Equal(t, 2, cfg.Options.MaxSegmentSize)
	assert.Equal(t, []string{"bench"}, cfg.Args)
}

func TestEnvFile(t *T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DABBLE_DATA=/tmp/from-env-file\n"), 0644))
	// godotenv never overrides variables that are already set
	t.Setenv("DABBLE_DATA", "")
	require.NoError(t, os.Unsetenv("DABBLE_DATA"))

	cfg, err := Load(nil, envFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env-file", cfg.DataDir)
}

func TestInvalidValues(t *T) {
	_, err := Load([]string{"-reclaim", "sometimes"}, noEnvFile(t))
	assert.Error(t, err)

	_, err = Load([]string{"-log-level", "loud"}, noEnvFile(t))
	assert.Error(t, err)

	_, err = Load([]string{"-unknown"}, noEnvFile(t))
	assert.Error(t, err)

	t.Setenv("DABBLE_ITERATIONS", "many")
	_, err = Load(nil, noEnvFile(t))
	assert.Error(t, err)
}
