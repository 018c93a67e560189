package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	NHBPrefix AddressPrefix = "nhb"
)

// AddressLength is the size of an account address. Accounts are identified by
// their ed25519 public key.
const AddressLength = ed25519.PublicKeySize

var (
	ErrInvalidAddress = errors.New("crypto: invalid address")
	ErrInvalidKey     = errors.New("crypto: invalid key")
)

// Address is a 32-byte account identifier.
type Address [AddressLength]byte

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// String renders the address as bech32 with the nhb prefix.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(NHBPrefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Hex returns the 0x-prefixed hex form of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

// MarshalText implements encoding.TextMarshaler so addresses render as bech32
// in JSON and YAML documents.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses a bech32 address carrying the nhb prefix.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if AddressPrefix(prefix) != NHBPrefix {
		return Address{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return AddressFromBytes(conv)
}

// ParseAddress accepts either the bech32 or the 0x-prefixed hex form.
func ParseAddress(value string) (Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return AddressFromBytes(raw)
	}
	return DecodeAddress(trimmed)
}

// --- Key Management ---

type PrivateKey struct {
	key ed25519.PrivateKey
}

type PublicKey struct {
	key ed25519.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: priv}, nil
}

// PrivateKeyFromSeed rebuilds a key from its 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes", ErrInvalidKey, ed25519.SeedSize)
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte {
	return k.key.Seed()
}

func (k *PrivateKey) PubKey() *PublicKey {
	pub, _ := k.key.Public().(ed25519.PublicKey)
	return &PublicKey{key: pub}
}

// Sign signs msg with the private key.
func (k *PrivateKey) Sign(msg []byte) [ed25519.SignatureSize]byte {
	var out [ed25519.SignatureSize]byte
	copy(out[:], ed25519.Sign(k.key, msg))
	return out
}

func (k *PublicKey) Address() Address {
	var addr Address
	copy(addr[:], k.key)
	return addr
}

func (k *PublicKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// Verify reports whether sig is a valid signature of msg by the key held in
// addr.
func Verify(addr Address, msg []byte, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(addr[:]), msg, sig)
}
