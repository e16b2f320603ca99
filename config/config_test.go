package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CI", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "pasticceria", cfg.DBName)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", cfg.AnthropicAPIURL)
	assert.Equal(t, "https://api.unsplash.com/search/photos", cfg.UnsplashAPIURL)
}

func TestLoadSecretFromFile(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CI", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	secretPath := filepath.Join(t.TempDir(), "anthropic_key")
	require.NoError(t, os.WriteFile(secretPath, []byte("sk-test-secret\n"), 0o600))
	t.Setenv("ANTHROPIC_API_KEY_FILE", secretPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-secret", cfg.AnthropicAPIKey)
}

func TestLoadSecretEnvWinsOverFile(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CI", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")

	secretPath := filepath.Join(t.TempDir(), "anthropic_key")
	require.NoError(t, os.WriteFile(secretPath, []byte("sk-from-file"), 0o600))
	t.Setenv("ANTHROPIC_API_KEY_FILE", secretPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.AnthropicAPIKey)
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CI", "")
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServerPort:      "8080",
			DBHost:          "localhost",
			DBPort:          "5432",
			DBUser:          "postgres",
			DBName:          "pasticceria",
			AnthropicAPIKey: "sk-test",
		}
	}

	t.Run("complete config passes", func(t *testing.T) {
		assert.NoError(t, Validate(valid()))
	})

	t.Run("missing database host fails", func(t *testing.T) {
		cfg := valid()
		cfg.DBHost = ""

		err := Validate(cfg)
		require.Error(t, err)

		var vErr ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "DB_HOST", vErr.Field)
	})

	t.Run("anthropic key required outside test", func(t *testing.T) {
		t.Setenv("ENV", "production")
		t.Setenv("CI", "")

		cfg := valid()
		cfg.AnthropicAPIKey = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("anthropic key optional in test", func(t *testing.T) {
		t.Setenv("ENV", "test")
		t.Setenv("CI", "")

		cfg := valid()
		cfg.AnthropicAPIKey = ""
		assert.NoError(t, Validate(cfg))
	})
}

func TestGetEnvironment(t *testing.T) {
	t.Run("CI wins", func(t *testing.T) {
		t.Setenv("CI", "true")
		t.Setenv("ENV", "production")
		assert.Equal(t, CI, GetEnvironment())
	})

	t.Run("explicit environments", func(t *testing.T) {
		t.Setenv("CI", "")
		for env, want := range map[string]Environment{
			"production":  Production,
			"test":        Test,
			"development": Development,
			"":            Development,
			"staging":     Development,
		} {
			t.Setenv("ENV", env)
			assert.Equal(t, want, GetEnvironment(), "ENV=%q", env)
		}
	})
}
