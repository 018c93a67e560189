package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/dan-merlea/sc-krogan-public/crypto"
)

func balanceKey(addr crypto.Address, asset string, nonce uint64) []byte {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	return prefixedKey(bankBalancePrefix, addr[:], []byte(asset), []byte{0}, nonceBytes[:])
}

// Balance returns the holding of (asset, nonce) for addr. Missing balances read
// as zero.
func (m *Manager) Balance(addr crypto.Address, asset string, nonce uint64) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(balanceKey(addr, asset, nonce), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetBalance overwrites the holding of (asset, nonce) for addr. Zero balances
// are deleted.
func (m *Manager) SetBalance(addr crypto.Address, asset string, nonce uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(balanceKey(addr, asset, nonce))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative balance for %s", addr)
	}
	return m.KVPut(balanceKey(addr, asset, nonce), amount)
}
