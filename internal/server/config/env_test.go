package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutDotenv(t *testing.T) {
	t.Helper()
	orig := dotenvFiles
	dotenvFiles = nil
	t.Cleanup(func() { dotenvFiles = orig })
}

// unsetOnCleanup registers name so variables set by godotenv are removed
// after the test.
func unsetOnCleanup(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func Test_parseEnv(t *testing.T) {
	withoutDotenv(t)

	t.Setenv("RECIPES_HTTP_ADDR", ":8080")
	t.Setenv("RECIPES_DATABASE_DSN", "postgres://env/recipes")
	t.Setenv("RECIPES_PASSWORD_HASHER", "pbkdf2_sha256")
	t.Setenv("RECIPES_ACCESS_TOKEN_VALIDITY", "2m")
	t.Setenv("RECIPES_HEALTH_CHECK_INTERVAL", "1s")
	t.Setenv("RECIPES_TOKEN_RATE_LIMIT", "2.5")
	t.Setenv("RECIPES_TOKEN_RATE_BURST", "7")

	cfg := defaultConfig()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, "postgres://env/recipes", cfg.DatabaseDSN)
	assert.Equal(t, "pbkdf2_sha256", cfg.PasswordHasher)
	assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, 2.5, cfg.TokenRateLimit)
	assert.Equal(t, 7, cfg.TokenRateBurst)
	assert.Equal(t, "secretKey", cfg.SecretKey, "unset variables keep their value")
}

func Test_parseEnv_Invalid(t *testing.T) {
	withoutDotenv(t)

	for _, name := range []string{
		"RECIPES_ACCESS_TOKEN_VALIDITY",
		"RECIPES_REFRESH_TOKEN_VALIDITY",
		"RECIPES_HEALTH_CHECK_INTERVAL",
		"RECIPES_TOKEN_RATE_LIMIT",
		"RECIPES_TOKEN_RATE_BURST",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "not-a-number")
			require.Error(t, parseEnv(defaultConfig()))
		})
	}
}

func Test_parseEnv_Dotenv(t *testing.T) {
	unsetOnCleanup(t, "RECIPES_S3_BUCKET")
	unsetOnCleanup(t, "RECIPES_SECRET_KEY")
	t.Setenv("RECIPES_SECRET_KEY", "from-process")

	path := writeTempFile(t, ".env", "RECIPES_S3_BUCKET=from-dotenv\nRECIPES_SECRET_KEY=from-dotenv\n")
	orig := dotenvFiles
	dotenvFiles = []string{path, "/missing/.env"}
	t.Cleanup(func() { dotenvFiles = orig })

	cfg := defaultConfig()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "from-dotenv", cfg.S3Bucket)
	assert.Equal(t, "from-process", cfg.SecretKey, "process environment wins over .env")
}
