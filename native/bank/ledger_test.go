package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/core/state"
	"github.com/dan-merlea/sc-krogan-public/crypto"
	"github.com/dan-merlea/sc-krogan-public/storage"
)

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[0] = b
	return a
}

func TestTransferMovesBalance(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	ledger := NewLedger()
	alice, bob := addr(1), addr(2)

	require.NoError(t, ledger.Credit(st, alice, airdrop.Payment{Asset: "TOK", Amount: big.NewInt(10)}))
	require.NoError(t, ledger.Transfer(st, alice, bob, airdrop.Payment{Asset: "TOK", Amount: big.NewInt(4)}))

	bal, err := st.Balance(alice, "TOK", 0)
	require.NoError(t, err)
	require.Equal(t, int64(6), bal.Int64())
	bal, err = st.Balance(bob, "TOK", 0)
	require.NoError(t, err)
	require.Equal(t, int64(4), bal.Int64())
}

func TestTransferRejections(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	ledger := NewLedger()
	alice, bob := addr(1), addr(2)

	err := ledger.Transfer(st, alice, bob, airdrop.Payment{Asset: "TOK", Amount: big.NewInt(1)})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := ledger.Transfer(st, alice, bob, airdrop.Payment{Asset: "TOK"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := ledger.Transfer(st, alice, alice, airdrop.Payment{Asset: "TOK", Amount: big.NewInt(1)}); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected self transfer error, got %v", err)
	}

	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NoError(t, ledger.Credit(st, bob, airdrop.Payment{Asset: "TOK", Amount: max}))
	if err := ledger.Credit(st, bob, airdrop.Payment{Asset: "TOK", Amount: big.NewInt(1)}); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestMultiTransferReportsFailingIndex(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	ledger := NewLedger()
	vault, user := addr(9), addr(3)
	require.NoError(t, ledger.Credit(st, vault, airdrop.Payment{Asset: "A", Amount: big.NewInt(5)}))

	err := ledger.MultiTransfer(st, vault, user, []airdrop.Payment{
		{Asset: "A", Amount: big.NewInt(5)},
		{Asset: "B", Amount: big.NewInt(1)},
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Contains(t, err.Error(), "transfer 1")
}
