package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON_SourcesAndPrecedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"store_backend":        "s3",
		"session_ttl":          "10m",
		"min_password_entropy": 50,
		"require_friends":      false,
		"s3_bucket":            "vault",
	})

	t.Run("loads from json, keeps absent keys", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-c", path}))

		assert.Equal(t, "s3", cfg.StoreBackend)
		assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 50.0, cfg.MinPasswordEntropy)
		assert.False(t, cfg.RequireFriends)
		assert.Equal(t, "vault", cfg.S3Bucket)
		assert.Equal(t, "us-east-1", cfg.S3Region)
	})

	t.Run("flags override json", func(t *testing.T) {
		cfg, err := load([]string{"-config", path, "-s", "memory"})
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.StoreBackend)
		assert.Equal(t, "vault", cfg.S3Bucket)
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		cfg := &Config{StoreBackend: "postgres"}
		require.NoError(t, parseJSON(cfg, nil))
		assert.Equal(t, "postgres", cfg.StoreBackend)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		require.Error(t, parseJSON(&Config{}, []string{"-c", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		require.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})
}
