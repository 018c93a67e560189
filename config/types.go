package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxClaimBatch bounds claim batches when the config leaves it unset.
const DefaultMaxClaimBatch = 100

// Auth configures bearer token authentication on mutating RPC methods.
type Auth struct {
	Enabled      bool   `toml:"Enabled"`
	JWTSecret    string `toml:"JWTSecret"`
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	Issuer       string `toml:"Issuer"`
	Audience     string `toml:"Audience"`
}

// Secret resolves the HMAC secret, preferring the environment variable.
func (a Auth) Secret() string {
	if env := strings.TrimSpace(a.JWTSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(a.JWTSecret)
}

// History configures the settlement history database.
type History struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

const (
	HistoryDriverNone     = "none"
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

func (h *History) applyDefaults(dataDir string) {
	h.Driver = strings.ToLower(strings.TrimSpace(h.Driver))
	if h.Driver == "" {
		h.Driver = HistoryDriverSQLite
	}
	if h.Driver == HistoryDriverSQLite && strings.TrimSpace(h.DSN) == "" {
		h.DSN = filepath.Join(dataDir, "history.db")
	}
}

// Webhook configures signed settlement notifications. Deliveries are
// disabled when Endpoint is empty.
type Webhook struct {
	Endpoint    string `toml:"Endpoint"`
	Secret      string `toml:"Secret"`
	SecretEnv   string `toml:"SecretEnv"`
	MaxAttempts int    `toml:"MaxAttempts"`
}

// Enabled reports whether settlement webhooks should be dispatched.
func (w Webhook) Enabled() bool { return strings.TrimSpace(w.Endpoint) != "" }

// SigningSecret resolves the HMAC secret, preferring the environment variable.
func (w Webhook) SigningSecret() string {
	if env := strings.TrimSpace(w.SecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(w.Secret)
}

// Logging configures the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	Pretty     bool   `toml:"Pretty"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

func (l *Logging) applyDefaults() {
	if strings.TrimSpace(l.Level) == "" {
		l.Level = "info"
	}
	if l.File != "" && l.MaxSizeMB == 0 {
		l.MaxSizeMB = 100
	}
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// RateLimit throttles RPC clients by source address.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

func (r *RateLimit) applyDefaults() {
	if r.RequestsPerSecond == 0 {
		r.RequestsPerSecond = 20
	}
	if r.Burst == 0 {
		r.Burst = 40
	}
}

type Pauses struct {
	Airdrop bool `toml:"Airdrop"`
}

// Modules returns the pause flags keyed by module name.
func (p Pauses) Modules() map[string]bool {
	return map[string]bool{"airdrop": p.Airdrop}
}
