package airdrop

import (
	"math/big"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
)

// Coalescer folds a sequence of per-entry rewards into the minimal transfer
// list. Native rewards accumulate into one total. Consecutive fungible
// rewards of the same asset merge. Indexed rewards (non-zero nonce) are never
// merged and flush any pending fungible run before being emitted.
type Coalescer struct {
	native    *big.Int
	pending   *airdrop.Payment
	transfers []airdrop.Payment
}

func NewCoalescer() *Coalescer {
	return &Coalescer{native: big.NewInt(0)}
}

// Add feeds one reward.
func (c *Coalescer) Add(p airdrop.Payment) {
	amount := p.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	switch {
	case p.IsNative():
		c.native.Add(c.native, amount)
	case p.IsIndexed():
		c.flush()
		c.transfers = append(c.transfers, airdrop.Payment{Asset: p.Asset, Nonce: p.Nonce, Amount: new(big.Int).Set(amount)})
	case c.pending != nil && c.pending.SameAsset(p):
		c.pending.Amount.Add(c.pending.Amount, amount)
	default:
		c.flush()
		c.pending = &airdrop.Payment{Asset: p.Asset, Amount: new(big.Int).Set(amount)}
	}
}

func (c *Coalescer) flush() {
	if c.pending == nil {
		return
	}
	c.transfers = append(c.transfers, *c.pending)
	c.pending = nil
}

// Finish flushes the pending run and returns the native total plus the
// ordered transfer list. The coalescer must not be reused afterwards.
func (c *Coalescer) Finish() (*big.Int, []airdrop.Payment) {
	c.flush()
	return c.native, c.transfers
}
