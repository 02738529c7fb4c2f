package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("NORNICORPUS_CONFIG_FILE", "does-not-exist.yaml")
	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./data", cfg.Manager.DataDir)
	assert.Equal(t, 6, cfg.Planner.ExhaustiveOrderThreshold)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("NORNICORPUS_CONFIG_FILE", "does-not-exist.yaml")
	t.Setenv("NORNICORPUS_DATA_DIR", "/tmp/corpora")
	t.Setenv("NORNICORPUS_EXECUTOR_BACKGROUND_TASKS", "8")
	cfg := LoadFromEnv()
	assert.Equal(t, "/tmp/corpora", cfg.Manager.DataDir)
	assert.Equal(t, 8, cfg.Executor.NumBackgroundTasks)
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Manager.DataDir = ""
	assert.Error(t, cfg.Validate())
}

func TestYAMLOverlayUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/nornicorpus.yaml"
	require.NoError(t, os.WriteFile(path, []byte("executor:\n  num_background_tasks: 16\n"), 0o644))
	t.Setenv("NORNICORPUS_CONFIG_FILE", path)

	cfg := LoadFromEnv()
	assert.Equal(t, 16, cfg.Executor.NumBackgroundTasks)

	t.Setenv("NORNICORPUS_EXECUTOR_BACKGROUND_TASKS", "2")
	cfg = LoadFromEnv()
	assert.Equal(t, 2, cfg.Executor.NumBackgroundTasks, "env must win over yaml overlay")
}

func TestParseMemorySize(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"1024":    1024,
		"1KB":     1024,
		"2MB":     2 * 1024 * 1024,
		"1GB":     1024 * 1024 * 1024,
		"unlimited": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseMemorySize(in), "input %q", in)
	}
}
