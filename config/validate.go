package config

import (
	"fmt"
	"strings"
)

// Validate checks that the loaded configuration can drive the node.
func (cfg *Config) Validate() error {
	if _, err := cfg.Owner(); err != nil {
		return fmt.Errorf("OwnerAddress: %w", err)
	}
	if _, err := cfg.Signer(); err != nil {
		return fmt.Errorf("SignerAddress: %w", err)
	}
	if cfg.MaxClaimBatch < 0 {
		return fmt.Errorf("MaxClaimBatch must not be negative")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch cfg.History.Driver {
	case HistoryDriverNone, HistoryDriverSQLite:
	case HistoryDriverPostgres:
		if strings.TrimSpace(cfg.History.DSN) == "" {
			return fmt.Errorf("history: postgres driver requires DSN")
		}
	default:
		return fmt.Errorf("history: unsupported driver %q", cfg.History.Driver)
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if cfg.Auth.Enabled && cfg.Auth.Secret() == "" {
		return fmt.Errorf("auth: enabled without JWTSecret or JWTSecretEnv value")
	}
	if cfg.Webhook.Enabled() && cfg.Webhook.SigningSecret() == "" {
		return fmt.Errorf("webhook: endpoint set without Secret or SecretEnv value")
	}
	if cfg.Webhook.MaxAttempts < 0 {
		return fmt.Errorf("webhook: MaxAttempts must not be negative")
	}
	return nil
}
