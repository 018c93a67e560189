package state

import (
	"fmt"
	"math/big"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

type storedCheckpoint struct {
	TotalEligibleUnits *big.Int
	RewardAsset        string
	RewardAmount       *big.Int
	AssetNonce         uint64
}

func newStoredCheckpoint(cp *airdrop.Checkpoint) *storedCheckpoint {
	stored := &storedCheckpoint{
		TotalEligibleUnits: big.NewInt(0),
		RewardAsset:        cp.RewardAsset,
		RewardAmount:       big.NewInt(0),
		AssetNonce:         cp.AssetNonce,
	}
	if cp.TotalEligibleUnits != nil {
		stored.TotalEligibleUnits.Set(cp.TotalEligibleUnits)
	}
	if cp.RewardAmount != nil {
		stored.RewardAmount.Set(cp.RewardAmount)
	}
	return stored
}

func (s *storedCheckpoint) toCheckpoint() (*airdrop.Checkpoint, error) {
	asset, err := airdrop.NormalizeAsset(s.RewardAsset)
	if err != nil {
		return nil, fmt.Errorf("airdrop checkpoint: %w", err)
	}
	out := &airdrop.Checkpoint{
		TotalEligibleUnits: big.NewInt(0),
		RewardAsset:        asset,
		RewardAmount:       big.NewInt(0),
		AssetNonce:         s.AssetNonce,
	}
	if s.TotalEligibleUnits != nil {
		out.TotalEligibleUnits.Set(s.TotalEligibleUnits)
	}
	if s.RewardAmount != nil {
		out.RewardAmount.Set(s.RewardAmount)
	}
	return out, nil
}

func airdropCheckpointKey(pool airdrop.PoolID) []byte {
	return prefixedKey(airdropCheckpointPrefix, pool[:])
}

func airdropPoolOwnerKey(pool airdrop.PoolID) []byte {
	return prefixedKey(airdropPoolOwnerPrefix, pool[:])
}

func airdropClaimedKey(claimant crypto.Address, pool airdrop.PoolID) []byte {
	return prefixedKey(airdropClaimedPrefix, claimant[:], pool[:])
}

func airdropWhitelistKey(addr crypto.Address) []byte {
	return prefixedKey(airdropWhitelistPrefix, addr[:])
}

// AirdropSigner returns the address whose key authorises claims.
func (m *Manager) AirdropSigner() (crypto.Address, bool, error) {
	var addr crypto.Address
	ok, err := m.KVGet(airdropSignerKey, &addr)
	return addr, ok, err
}

func (m *Manager) AirdropSetSigner(addr crypto.Address) error {
	return m.KVPut(airdropSignerKey, addr)
}

// AirdropOwner returns the administrative owner of the airdrop module.
func (m *Manager) AirdropOwner() (crypto.Address, bool, error) {
	var addr crypto.Address
	ok, err := m.KVGet(airdropOwnerKey, &addr)
	return addr, ok, err
}

func (m *Manager) AirdropSetOwner(addr crypto.Address) error {
	return m.KVPut(airdropOwnerKey, addr)
}

// AirdropCheckpointGet loads the checkpoint registered under pool.
func (m *Manager) AirdropCheckpointGet(pool airdrop.PoolID) (*airdrop.Checkpoint, bool, error) {
	var stored storedCheckpoint
	ok, err := m.KVGet(airdropCheckpointKey(pool), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	cp, err := stored.toCheckpoint()
	if err != nil {
		return nil, false, err
	}
	return cp, true, nil
}

// AirdropCheckpointPut stores cp under pool. Callers enforce set-once.
func (m *Manager) AirdropCheckpointPut(pool airdrop.PoolID, cp *airdrop.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("airdrop checkpoint: nil record")
	}
	return m.KVPut(airdropCheckpointKey(pool), newStoredCheckpoint(cp))
}

func (m *Manager) AirdropPoolOwner(pool airdrop.PoolID) (crypto.Address, bool, error) {
	var addr crypto.Address
	ok, err := m.KVGet(airdropPoolOwnerKey(pool), &addr)
	return addr, ok, err
}

func (m *Manager) AirdropSetPoolOwner(pool airdrop.PoolID, owner crypto.Address) error {
	return m.KVPut(airdropPoolOwnerKey(pool), owner)
}

// AirdropClaimed reports whether claimant already claimed pool.
func (m *Manager) AirdropClaimed(claimant crypto.Address, pool airdrop.PoolID) (bool, error) {
	var claimed bool
	ok, err := m.KVGet(airdropClaimedKey(claimant, pool), &claimed)
	if err != nil {
		return false, err
	}
	return ok && claimed, nil
}

// AirdropMarkClaimed sets the claim flag. The flag is never cleared.
func (m *Manager) AirdropMarkClaimed(claimant crypto.Address, pool airdrop.PoolID) error {
	return m.KVPut(airdropClaimedKey(claimant, pool), true)
}

func (m *Manager) AirdropWhitelisted(addr crypto.Address) (bool, error) {
	var listed bool
	ok, err := m.KVGet(airdropWhitelistKey(addr), &listed)
	if err != nil {
		return false, err
	}
	return ok && listed, nil
}

func (m *Manager) AirdropSetWhitelisted(addr crypto.Address, listed bool) error {
	if !listed {
		return m.KVDelete(airdropWhitelistKey(addr))
	}
	return m.KVPut(airdropWhitelistKey(addr), true)
}
