package airdrop

import (
	"strconv"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

const payloadSeparator = '_'

// Verifier checks that the configured signer authorised claimant to claim
// units against pool.
type Verifier interface {
	Verify(signer crypto.Address, claimant crypto.Address, pool airdrop.PoolID, units uint32, sig [64]byte) bool
}

// FormatUnits renders units as unsigned base-10 ASCII without leading zeros.
func FormatUnits(units uint32) string {
	return strconv.FormatUint(uint64(units), 10)
}

// SignedPayload builds the exact byte string the signer signs:
// claimant || pool || '_' || decimal(units).
func SignedPayload(claimant []byte, pool airdrop.PoolID, units uint32) []byte {
	digits := FormatUnits(units)
	payload := make([]byte, 0, len(claimant)+len(pool)+1+len(digits))
	payload = append(payload, claimant...)
	payload = append(payload, pool[:]...)
	payload = append(payload, payloadSeparator)
	payload = append(payload, digits...)
	return payload
}

// Ed25519Verifier verifies claim signatures with the signer's ed25519 key.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(signer crypto.Address, claimant crypto.Address, pool airdrop.PoolID, units uint32, sig [64]byte) bool {
	if signer.IsZero() {
		return false
	}
	return crypto.Verify(signer, SignedPayload(claimant[:], pool, units), sig[:])
}

// SignClaim produces the signature a claimant presents for (pool, units).
func SignClaim(key *crypto.PrivateKey, claimant crypto.Address, pool airdrop.PoolID, units uint32) [64]byte {
	return key.Sign(SignedPayload(claimant[:], pool, units))
}
