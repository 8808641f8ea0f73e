package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-s", "postgres", "-d", "db", "-k", "/tmp/keys.db", "-t", "5", "-m", "60",
				"-r", "2048", "-f=false", "-l", "debug", "-b", "bucket", "-g", "eu-west-1",
				"-e", "http://endpoint", "-u", "user", "-p", "password",
			},
			expected: &Config{
				StoreBackend:       "postgres",
				DatabaseDSN:        "db",
				KeyCachePath:       "/tmp/keys.db",
				SessionTTL:         5 * time.Minute,
				MinPasswordEntropy: 60,
				RSABits:            2048,
				RequireFriends:     false,
				LogLevel:           "debug",
				S3Bucket:           "bucket",
				S3Region:           "eu-west-1",
				S3BaseEndpoint:     "http://endpoint",
				S3AccessKey:        "user",
				S3SecretKey:        "password",
			},
		},
		{
			name:    "bad integer",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestLoad_BoolFlagWithSeparateValue(t *testing.T) {
	c, err := load([]string{"-f", "false", "-s", "postgres", "-r", "4096"})
	require.NoError(t, err)

	assert.False(t, c.RequireFriends)
	assert.Equal(t, BackendPostgres, c.StoreBackend)
	assert.Equal(t, 4096, c.RSABits)
}
