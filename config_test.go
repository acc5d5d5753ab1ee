package loom

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdi/loom/errors"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions([]byte(`
parallel_startup: false
startup_timeout: 1m
context_timeout: 15s
max_parallel_builds: 8
fail_fast: false
`))
	require.NoError(t, err)

	assert.False(t, opts.ParallelStartup)
	assert.Equal(t, time.Minute, opts.StartupTimeout)
	assert.Equal(t, 15*time.Second, opts.ContextTimeout)
	assert.Equal(t, 8, opts.MaxParallelBuilds)
	assert.False(t, opts.FailFast)
}

func TestParseOptionsPartialFallsBackToDefaults(t *testing.T) {
	opts, err := ParseOptions([]byte("fail_fast: false\n"))
	require.NoError(t, err)

	defaults := DefaultOptions()
	assert.False(t, opts.FailFast)
	assert.Equal(t, defaults.ParallelStartup, opts.ParallelStartup)
	assert.Equal(t, defaults.StartupTimeout, opts.StartupTimeout)
	assert.Equal(t, defaults.MaxParallelBuilds, opts.MaxParallelBuilds)
}

func TestParseOptionsRejectsBadInput(t *testing.T) {
	_, err := ParseOptions([]byte("startup_timeout: soon\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDefinitionSentinel))

	_, err = ParseOptions([]byte("{not yaml"))
	require.Error(t, err)
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("context_timeout: 2s\n"), 0o644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, opts.ContextTimeout)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
