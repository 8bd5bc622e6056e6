package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSecrets_DevelopmentAllowsMissingStorePassword(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Env: "development"},
		Store:    StoreConfig{Backend: "postgres"},
		Embedder: EmbedderConfig{APIKey: "sk-test-key-with-enough-length"},
	}
	assert.NoError(t, ValidateSecrets(cfg))
}

func TestValidateSecrets_ProductionRejectsMissingEmbedderKey(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Env: "production"},
		Store:    StoreConfig{Backend: "memory"},
		Embedder: EmbedderConfig{APIKey: ""},
	}
	err := ValidateSecrets(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "embedder.api_key")
}

func TestValidateSecrets_ProductionRejectsPlaceholderPassword(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Env: "production"},
		Store:    StoreConfig{Backend: "postgres", Password: "changeme"},
		Embedder: EmbedderConfig{APIKey: "sk-test-key-with-enough-length"},
	}
	err := ValidateSecrets(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.password")
}

func TestValidateSecrets_MemoryBackendSkipsStorePasswordCheck(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Env: "production"},
		Store:    StoreConfig{Backend: "memory"},
		Embedder: EmbedderConfig{APIKey: "sk-test-key-with-enough-length"},
	}
	assert.NoError(t, ValidateSecrets(cfg))
}
