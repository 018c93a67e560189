package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dan-merlea/sc-krogan-public/crypto"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func TestLoadParsesSections(t *testing.T) {
	t.Setenv("AIRDROP_TEST_WEBHOOK", "hook-secret")
	owner := testAddress(t)
	signer := testAddress(t)
	path := writeConfig(t, `ListenAddress = "127.0.0.1:9100"
DataDir = "/var/lib/airdrop"
Environment = "prod"
OwnerAddress = "`+owner+`"
SignerAddress = "`+signer+`"
MaxClaimBatch = 25

[auth]
Enabled = true
JWTSecret = "inline-secret"
Issuer = "ops"
Audience = "airdrop"

[history]
Driver = "postgres"
DSN = "postgres://airdrop@db/airdrop"

[logging]
Level = "debug"
Pretty = true
File = "/var/log/airdrop.log"

[telemetry]
Endpoint = "otel:4318"
Insecure = true
Traces = true

[rate_limit]
RequestsPerSecond = 5.5
Burst = 11

[pauses]
Airdrop = true

[webhook]
Endpoint = "https://hooks.example/airdrop"
SecretEnv = "AIRDROP_TEST_WEBHOOK"
MaxAttempts = 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9100" || cfg.Environment != "prod" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.MaxClaimBatch != 25 {
		t.Fatalf("unexpected max claim batch: %d", cfg.MaxClaimBatch)
	}
	if got, _ := cfg.Owner(); got.String() != owner {
		t.Fatalf("unexpected owner: %s", got)
	}
	if cfg.Auth.Secret() != "inline-secret" || cfg.Auth.Audience != "airdrop" {
		t.Fatalf("unexpected auth: %+v", cfg.Auth)
	}
	if cfg.History.Driver != HistoryDriverPostgres {
		t.Fatalf("unexpected history driver: %s", cfg.History.Driver)
	}
	if cfg.Logging.MaxSizeMB != 100 || !cfg.Logging.Pretty {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.RateLimit.RequestsPerSecond != 5.5 || cfg.RateLimit.Burst != 11 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	if !cfg.Pauses.Modules()["airdrop"] {
		t.Fatalf("expected airdrop pause")
	}
	if !cfg.Webhook.Enabled() || cfg.Webhook.SigningSecret() != "hook-secret" || cfg.Webhook.MaxAttempts != 3 {
		t.Fatalf("unexpected webhook: %+v", cfg.Webhook)
	}
	if cfg.StatePath() != filepath.Join("/var/lib/airdrop", "state") {
		t.Fatalf("unexpected state path: %s", cfg.StatePath())
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "`+testAddress(t)+`"
SignerAddress = "`+testAddress(t)+`"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxClaimBatch != DefaultMaxClaimBatch {
		t.Fatalf("unexpected default batch: %d", cfg.MaxClaimBatch)
	}
	if cfg.History.Driver != HistoryDriverSQLite || cfg.History.DSN != filepath.Join("./airdrop-data", "history.db") {
		t.Fatalf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.RateLimit.RequestsPerSecond != 20 || cfg.RateLimit.Burst != 40 {
		t.Fatalf("unexpected rate defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	signer := testAddress(t)
	cases := map[string]string{
		"owner":    `OwnerAddress = "nope"` + "\nSignerAddress = \"" + signer + "\"\n",
		"driver":   `OwnerAddress = "` + signer + `"` + "\nSignerAddress = \"" + signer + "\"\n[history]\nDriver = \"mongo\"\n",
		"postgres": `OwnerAddress = "` + signer + `"` + "\nSignerAddress = \"" + signer + "\"\n[history]\nDriver = \"postgres\"\n",
		"auth":     `OwnerAddress = "` + signer + `"` + "\nSignerAddress = \"" + signer + "\"\n[auth]\nEnabled = true\n",
		"webhook":  `OwnerAddress = "` + signer + `"` + "\nSignerAddress = \"" + signer + "\"\n[webhook]\nEndpoint = \"https://hooks.example\"\n",
		"unknown":  `OwnerAddress = "` + signer + `"` + "\nSignerAddress = \"" + signer + "\"\nValidatorKey = \"x\"\n",
	}
	for name, contents := range cases {
		if _, err := Load(writeConfig(t, contents)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestAuthSecretPrefersEnv(t *testing.T) {
	t.Setenv("AIRDROP_TEST_SECRET", "  from-env ")
	auth := Auth{JWTSecret: "inline", JWTSecretEnv: "AIRDROP_TEST_SECRET"}
	if got := auth.Secret(); got != "from-env" {
		t.Fatalf("unexpected secret: %q", got)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if _, err := os.Stat(cfg.SignerKeystorePath); err != nil {
		t.Fatalf("expected keystore: %v", err)
	}
	if !strings.HasPrefix(cfg.SignerAddress, "nhb1") || cfg.OwnerAddress != cfg.SignerAddress {
		t.Fatalf("unexpected default addresses: %s %s", cfg.OwnerAddress, cfg.SignerAddress)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if reloaded.SignerAddress != cfg.SignerAddress || reloaded.Auth.Secret() == "" {
		t.Fatalf("default config did not round trip: %+v", reloaded)
	}
}
