package airdrop

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NativeAsset identifies the chain's native currency.
const NativeAsset = "NHB"

const maxAssetLength = 32

var (
	ErrDuplicatePool       = errors.New("airdrop: checkpoint already exists")
	ErrUnauthorized        = errors.New("airdrop: caller not authorized")
	ErrOwnerNotWhitelisted = errors.New("airdrop: checkpoint owner no longer whitelisted")
	ErrInvalidAmount       = errors.New("airdrop: amount must be positive")
	ErrInvalidSignature    = errors.New("airdrop: invalid signature")
	ErrAlreadyClaimed      = errors.New("airdrop: already claimed rewards for this checkpoint")
	ErrUnknownPool         = errors.New("airdrop: checkpoint does not exist")
	ErrDivisionByZero      = errors.New("airdrop: total eligible units is zero")
	ErrNothingToWithdraw   = errors.New("airdrop: nothing to withdraw")
	ErrInvalidAsset        = errors.New("airdrop: invalid asset identifier")
	ErrInvalidPoolID       = errors.New("airdrop: invalid checkpoint id")
	ErrBatchTooLarge       = errors.New("airdrop: claim batch too large")
	ErrSettlementFailed    = errors.New("airdrop: settlement transfer failed")
	ErrSignerNotSet        = errors.New("airdrop: signer not configured")
	ErrNotInitialised      = errors.New("airdrop: owner not configured")
)

// PoolID identifies a reward checkpoint.
type PoolID [32]byte

func (id PoolID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id PoolID) IsZero() bool {
	return id == PoolID{}
}

func (id PoolID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PoolID) UnmarshalText(text []byte) error {
	parsed, err := ParsePoolID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParsePoolID decodes a 32-byte hex identifier, with or without 0x prefix.
func ParsePoolID(value string) (PoolID, error) {
	var id PoolID
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 2*len(id) {
		return id, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidPoolID, 2*len(id), len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidPoolID, err)
	}
	copy(id[:], decoded)
	return id, nil
}

// Checkpoint is an immutable reward pool: RewardAmount of RewardAsset (and
// AssetNonce, zero for fungible or native) shared pro-rata over
// TotalEligibleUnits.
type Checkpoint struct {
	TotalEligibleUnits *big.Int
	RewardAsset        string
	RewardAmount       *big.Int
	AssetNonce         uint64
}

func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.TotalEligibleUnits = cloneInt(c.TotalEligibleUnits)
	out.RewardAmount = cloneInt(c.RewardAmount)
	return &out
}

// Payment is a single (asset, nonce, amount) transfer.
type Payment struct {
	Asset  string
	Nonce  uint64
	Amount *big.Int
}

// IsNative reports whether the payment moves the native currency.
func (p Payment) IsNative() bool {
	return p.Asset == NativeAsset && p.Nonce == 0
}

// IsIndexed reports whether the payment names one indexed unit of an asset.
func (p Payment) IsIndexed() bool {
	return p.Nonce != 0
}

// SameAsset reports whether p and other can be merged into one transfer.
func (p Payment) SameAsset(other Payment) bool {
	return p.Asset == other.Asset && p.Nonce == other.Nonce
}

func (p Payment) Clone() Payment {
	p.Amount = cloneInt(p.Amount)
	return p
}

func (p Payment) String() string {
	return fmt.Sprintf("%s/%d:%s", p.Asset, p.Nonce, cloneInt(p.Amount).String())
}

// ClaimEntry is one (pool, units, signature) tuple of a claim batch.
type ClaimEntry struct {
	Pool      PoolID
	Units     uint32
	Signature [64]byte
}

// NormalizeAsset trims an asset identifier and checks its character set.
// Case is preserved: "WEGLD-bd4d79" and "WEGLD-BD4D79" are different assets.
func NormalizeAsset(asset string) (string, error) {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" || len(trimmed) > maxAssetLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
	}
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
		}
	}
	return trimmed, nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
