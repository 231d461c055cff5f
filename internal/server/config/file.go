package config

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/recipekeeper/internal/flagx"
	"github.com/dmitrijs2005/recipekeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for file decoding. Pointer fields tell absent
// keys apart from zero values, so a partial file only overrides what it names.
// JSON documents are valid YAML and decode through the same path.
type FileConfig struct {
	EndpointAddrHTTP             *string         `yaml:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `yaml:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `yaml:"database_dsn"`
	SecretKey                    *string         `yaml:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `yaml:"refresh_token_validity_duration"`
	PasswordHasher               *string         `yaml:"password_hasher"`
	StorageBackend               *string         `yaml:"storage_backend"`
	MediaRoot                    *string         `yaml:"media_root"`
	MediaURL                     *string         `yaml:"media_url"`
	S3RootUser                   *string         `yaml:"s3_root_user"`
	S3RootPassword               *string         `yaml:"s3_root_password"`
	S3Bucket                     *string         `yaml:"s3_bucket"`
	S3Region                     *string         `yaml:"s3_region"`
	S3BaseEndpoint               *string         `yaml:"s3_base_endpoint"`
	LogBackend                   *string         `yaml:"log_backend"`
	LogLevel                     *string         `yaml:"log_level"`
	TokenRateLimit               *float64        `yaml:"token_rate_limit"`
	TokenRateBurst               *int            `yaml:"token_rate_burst"`
	HealthCheckInterval          *timex.Duration `yaml:"health_check_interval"`
}

func configFileFlag(args []string) string {
	return flagx.ConfigFileFlag(args)
}

// parseFile overlays values from path onto config. An empty path is a no-op.
func parseFile(config *Config, path string) error {
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	if err := yaml.Unmarshal(b, fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.SecretKey, fc.SecretKey)
	if fc.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	if fc.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = fc.RefreshTokenValidityDuration.Duration
	}
	setString(&config.PasswordHasher, fc.PasswordHasher)
	setString(&config.StorageBackend, fc.StorageBackend)
	setString(&config.MediaRoot, fc.MediaRoot)
	setString(&config.MediaURL, fc.MediaURL)
	setString(&config.S3RootUser, fc.S3RootUser)
	setString(&config.S3RootPassword, fc.S3RootPassword)
	setString(&config.S3Bucket, fc.S3Bucket)
	setString(&config.S3Region, fc.S3Region)
	setString(&config.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&config.LogBackend, fc.LogBackend)
	setString(&config.LogLevel, fc.LogLevel)
	if fc.TokenRateLimit != nil {
		config.TokenRateLimit = *fc.TokenRateLimit
	}
	if fc.TokenRateBurst != nil {
		config.TokenRateBurst = *fc.TokenRateBurst
	}
	if fc.HealthCheckInterval != nil {
		config.HealthCheckInterval = fc.HealthCheckInterval.Duration
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
