package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/crim/internal/flagx"
	"github.com/dmitrijs2005/crim/internal/timex"
)

// JSONConfig is the on-disk shape of the config file. Pointer fields keep
// absent keys from overwriting defaults.
type JSONConfig struct {
	StoreBackend       *string         `json:"store_backend"`
	DatabaseDSN        *string         `json:"database_dsn"`
	KeyCachePath       *string         `json:"key_cache_path"`
	SessionTTL         *timex.Duration `json:"session_ttl"`
	MinPasswordEntropy *float64        `json:"min_password_entropy"`
	RSABits            *int            `json:"rsa_bits"`
	RequireFriends     *bool           `json:"require_friends"`
	LogLevel           *string         `json:"log_level"`
	LogFormat          *string         `json:"log_format"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	S3AccessKey        *string         `json:"s3_access_key"`
	S3SecretKey        *string         `json:"s3_secret_key"`
}

// parseJSON overlays values from the file named by -c/-config, if any.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.KeyCachePath, c.KeyCachePath)
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.MinPasswordEntropy != nil {
		config.MinPasswordEntropy = *c.MinPasswordEntropy
	}
	if c.RSABits != nil {
		config.RSABits = *c.RSABits
	}
	if c.RequireFriends != nil {
		config.RequireFriends = *c.RequireFriends
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
