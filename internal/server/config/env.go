package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "RECIPES_"

// dotenvFiles are loaded before the environment is read. Variables that
// are already set win over the file.
var dotenvFiles = []string{".env"}

func parseEnv(config *Config) error {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envString(&config.PasswordHasher, "PASSWORD_HASHER")
	envString(&config.StorageBackend, "STORAGE_BACKEND")
	envString(&config.MediaRoot, "MEDIA_ROOT")
	envString(&config.MediaURL, "MEDIA_URL")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.LogBackend, "LOG_BACKEND")
	envString(&config.LogLevel, "LOG_LEVEL")

	if err := envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY"); err != nil {
		return err
	}
	if err := envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_VALIDITY"); err != nil {
		return err
	}
	if err := envDuration(&config.HealthCheckInterval, "HEALTH_CHECK_INTERVAL"); err != nil {
		return err
	}

	if v, ok := os.LookupEnv(EnvPrefix + "TOKEN_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTOKEN_RATE_LIMIT: %w", EnvPrefix, err)
		}
		config.TokenRateLimit = f
	}
	if v, ok := os.LookupEnv(EnvPrefix + "TOKEN_RATE_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN_RATE_BURST: %w", EnvPrefix, err)
		}
		config.TokenRateBurst = n
	}

	return nil
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, name string) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}
