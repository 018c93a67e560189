package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
)

// claimBatch is the YAML document exchanged between the signer and claimants.
type claimBatch struct {
	Claimant string       `yaml:"claimant"`
	Entries  []batchEntry `yaml:"entries"`
}

type batchEntry struct {
	Pool      string `yaml:"pool"`
	Units     uint32 `yaml:"units"`
	Signature string `yaml:"signature,omitempty"`
}

func loadBatch(path string) (*claimBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	batch := &claimBatch{}
	if err := yaml.Unmarshal(data, batch); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(batch.Entries) == 0 {
		return nil, fmt.Errorf("%s: no entries", path)
	}
	for i, entry := range batch.Entries {
		if _, err := airdrop.ParsePoolID(entry.Pool); err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i, err)
		}
	}
	return batch, nil
}

func writeBatch(path string, batch *claimBatch) error {
	data, err := yaml.Marshal(batch)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// signBatch fills in the signer's signature for every entry.
func signBatch(key *crypto.PrivateKey, batch *claimBatch) error {
	claimant, err := crypto.ParseAddress(batch.Claimant)
	if err != nil {
		return fmt.Errorf("claimant: %w", err)
	}
	for i := range batch.Entries {
		pool, err := airdrop.ParsePoolID(batch.Entries[i].Pool)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		sig := nativeairdrop.SignClaim(key, claimant, pool, batch.Entries[i].Units)
		batch.Entries[i].Signature = hex.EncodeToString(sig[:])
	}
	return nil
}

func (b *claimBatch) params() (map[string]interface{}, error) {
	entries := make([]map[string]interface{}, 0, len(b.Entries))
	for i, entry := range b.Entries {
		if strings.TrimSpace(entry.Signature) == "" {
			return nil, fmt.Errorf("entry %d: missing signature", i)
		}
		entries = append(entries, map[string]interface{}{
			"pool":      entry.Pool,
			"units":     entry.Units,
			"signature": entry.Signature,
		})
	}
	return map[string]interface{}{"entries": entries}, nil
}
