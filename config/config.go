package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dan-merlea/sc-krogan-public/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress      string `toml:"ListenAddress"`
	DataDir            string `toml:"DataDir"`
	NetworkName        string `toml:"NetworkName"`
	Environment        string `toml:"Environment"`
	OwnerAddress       string `toml:"OwnerAddress"`
	SignerAddress      string `toml:"SignerAddress"`
	SignerKeystorePath string `toml:"SignerKeystorePath"`
	MaxClaimBatch      int    `toml:"MaxClaimBatch"`
	ReadTimeout        int    `toml:"ReadTimeout"`
	WriteTimeout       int    `toml:"WriteTimeout"`

	Auth      Auth      `toml:"auth"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
	RateLimit RateLimit `toml:"rate_limit"`
	Pauses    Pauses    `toml:"pauses"`
	Webhook   Webhook   `toml:"webhook"`
}

// Load loads the configuration from the given path. A default configuration
// with a freshly generated signer keystore is written when the file does not
// exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./airdrop-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "nhb-local"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.MaxClaimBatch == 0 {
		cfg.MaxClaimBatch = DefaultMaxClaimBatch
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15
	}
	cfg.History.applyDefaults(cfg.DataDir)
	cfg.RateLimit.applyDefaults()
	cfg.Logging.applyDefaults()
}

// createDefault creates and saves a default configuration file. The generated
// signer key also acts as owner until an operator edits the file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}
	addr := key.PubKey().Address().String()
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:      ":8080",
		DataDir:            "./airdrop-data",
		NetworkName:        "nhb-local",
		Environment:        "dev",
		OwnerAddress:       addr,
		SignerAddress:      addr,
		SignerKeystorePath: keystorePath,
		MaxClaimBatch:      DefaultMaxClaimBatch,
		Auth: Auth{
			Enabled:      true,
			JWTSecret:    secret,
			JWTSecretEnv: "AIRDROP_JWT_SECRET",
			Issuer:       "nhb-airdrop",
		},
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "signer.keystore")
}

// Owner parses OwnerAddress.
func (cfg *Config) Owner() (crypto.Address, error) {
	return crypto.ParseAddress(cfg.OwnerAddress)
}

// Signer parses SignerAddress.
func (cfg *Config) Signer() (crypto.Address, error) {
	return crypto.ParseAddress(cfg.SignerAddress)
}

// StatePath is the LevelDB directory holding module state.
func (cfg *Config) StatePath() string {
	return filepath.Join(cfg.DataDir, "state")
}
