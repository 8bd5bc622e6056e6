package config

import (
	"fmt"
	"strings"
)

// SecretValidator checks that the secrets a deployment actually uses
// (store password, cache password, embedder API key) aren't left at
// example/placeholder values before the service is allowed to run in
// production.
type SecretValidator struct {
	config   *Config
	errors   []string
	warnings []string
}

func NewSecretValidator(cfg *Config) *SecretValidator {
	return &SecretValidator{config: cfg, errors: []string{}, warnings: []string{}}
}

func (v *SecretValidator) Validate() error {
	isProduction := v.config.App.IsProduction()

	v.validateStorePassword(isProduction)
	v.validateCachePassword(isProduction)
	v.validateEmbedderAPIKey(isProduction)

	if len(v.errors) > 0 {
		return fmt.Errorf("secret validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	if len(v.warnings) > 0 && isProduction {
		fmt.Printf("security warnings:\n%s\n", strings.Join(v.warnings, "\n"))
	}
	return nil
}

func (v *SecretValidator) validateStorePassword(isProduction bool) {
	if v.config.Store.Backend == "memory" {
		return
	}
	password := v.config.Store.Password
	if password == "" {
		v.addWarning("store.password is not set")
		return
	}
	if password == "changeme" {
		v.addError("store.password is using the default placeholder value", isProduction)
		return
	}
	if len(password) < 12 {
		v.addWarning("store.password should be at least 12 characters long")
	}
}

func (v *SecretValidator) validateCachePassword(isProduction bool) {
	if !v.config.Cache.Enabled {
		return
	}
	password := v.config.Cache.Password
	if password == "" {
		v.addWarning("cache.password is not set")
		return
	}
	if len(password) < 12 {
		v.addWarning("cache.password should be at least 12 characters long")
	}
}

func (v *SecretValidator) validateEmbedderAPIKey(isProduction bool) {
	key := v.config.Embedder.APIKey
	if key == "" {
		v.addError("embedder.api_key is not set", isProduction)
		return
	}
	if key == "changeme" {
		v.addError("embedder.api_key is using the default placeholder value", isProduction)
		return
	}
	if len(key) < 16 {
		v.addWarning("embedder.api_key looks unusually short")
	}
}

func (v *SecretValidator) addError(message string, isProduction bool) {
	if isProduction {
		v.errors = append(v.errors, "  - "+message)
	} else {
		v.warnings = append(v.warnings, "  - "+message)
	}
}

func (v *SecretValidator) addWarning(message string) {
	v.warnings = append(v.warnings, "  - "+message)
}

// ValidateSecrets is a convenience wrapper cmd/server calls after Load.
func ValidateSecrets(cfg *Config) error {
	return NewSecretValidator(cfg).Validate()
}
