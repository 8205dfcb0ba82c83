package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"TRACKLE_BASE_URL", "TRACKLE_USERNAME", "TRACKLE_PASSWORD", "TRACKLE_LOG_LEVEL", "TRACKLE_CONFIG"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaultsWithWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKLE_CONFIG", writeConfigFile(t, ""))

	cfg, warnings, err := loadConfig(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, defaultUsername, cfg.Username)
	assert.Equal(t, defaultPassword, cfg.Password)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Len(t, warnings, 3, "each missing credential setting warns once")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "base_url: http://file.example.com\nusername: filer\n")
	t.Setenv("TRACKLE_CONFIG", path)
	t.Setenv("TRACKLE_BASE_URL", "http://env.example.com")

	cfg, warnings, err := loadConfig(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com", cfg.BaseURL)
	assert.Equal(t, "filer", cfg.Username)
	for _, warning := range warnings {
		assert.NotContains(t, warning, "TRACKLE_BASE_URL")
		assert.NotContains(t, warning, "TRACKLE_USERNAME")
	}
}

func TestFileLayerUsedWhenEnvEmpty(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "base_url: http://file.example.com\npassword: s3cret\nlog_level: debug\n")

	cfg, warnings, err := loadConfig(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://file.example.com", cfg.BaseURL)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Len(t, warnings, 1, "only the username should still warn")
	assert.Contains(t, warnings[0], "TRACKLE_USERNAME")
}

func TestExplicitMissingConfigFileFails(t *testing.T) {
	clearEnv(t)

	_, _, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMalformedBaseURLWarnsButLoads(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKLE_CONFIG", writeConfigFile(t, ""))
	t.Setenv("TRACKLE_BASE_URL", "::not a url::")

	cfg, warnings, err := loadConfig(context.Background(), "")
	require.NoError(t, err, "a bad URL degrades with a warning, it never blocks startup")
	assert.Equal(t, "::not a url::", cfg.BaseURL)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "does not look like a URL")
}
