package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrBalanceOverflow     = errors.New("bank: balance exceeds 256 bits")
	ErrSelfTransfer        = errors.New("bank: sender and recipient are identical")
)

// BalanceState is the balance view the ledger operates on. Both the committed
// state manager and a staged transaction satisfy it.
type BalanceState interface {
	Balance(addr crypto.Address, asset string, nonce uint64) (*big.Int, error)
	SetBalance(addr crypto.Address, asset string, nonce uint64, amount *big.Int) error
}

// Ledger moves balances between accounts.
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// Transfer debits from and credits to with payment.
func (l *Ledger) Transfer(st BalanceState, from, to crypto.Address, payment airdrop.Payment) error {
	if st == nil {
		return fmt.Errorf("bank: state not configured")
	}
	if payment.Amount == nil || payment.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSelfTransfer
	}
	fromBal, err := st.Balance(from, payment.Asset, payment.Nonce)
	if err != nil {
		return err
	}
	if fromBal.Cmp(payment.Amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, payment.Asset, fromBal, payment.Amount)
	}
	toBal, err := st.Balance(to, payment.Asset, payment.Nonce)
	if err != nil {
		return err
	}
	credited := new(big.Int).Add(toBal, payment.Amount)
	if _, overflow := uint256.FromBig(credited); overflow {
		return ErrBalanceOverflow
	}
	if err := st.SetBalance(from, payment.Asset, payment.Nonce, new(big.Int).Sub(fromBal, payment.Amount)); err != nil {
		return err
	}
	return st.SetBalance(to, payment.Asset, payment.Nonce, credited)
}

// MultiTransfer applies payments in order. The first failure aborts and is
// returned with its position. Callers that need all-or-nothing semantics run
// it against a staged state.
func (l *Ledger) MultiTransfer(st BalanceState, from, to crypto.Address, payments []airdrop.Payment) error {
	for i, payment := range payments {
		if err := l.Transfer(st, from, to, payment); err != nil {
			return fmt.Errorf("bank: transfer %d (%s): %w", i, payment, err)
		}
	}
	return nil
}

// Credit mints amount into addr. It models deposits arriving from outside the
// module.
func (l *Ledger) Credit(st BalanceState, addr crypto.Address, payment airdrop.Payment) error {
	if st == nil {
		return fmt.Errorf("bank: state not configured")
	}
	if payment.Amount == nil || payment.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := st.Balance(addr, payment.Asset, payment.Nonce)
	if err != nil {
		return err
	}
	credited := new(big.Int).Add(bal, payment.Amount)
	if _, overflow := uint256.FromBig(credited); overflow {
		return ErrBalanceOverflow
	}
	return st.SetBalance(addr, payment.Asset, payment.Nonce, credited)
}
