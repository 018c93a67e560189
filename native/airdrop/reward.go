package airdrop

import (
	"math/big"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
)

// CalculateReward returns floor(rewardAmount * units / totalUnits). The
// remainder stays in the module vault.
func CalculateReward(rewardAmount *big.Int, units uint32, totalUnits *big.Int) (*big.Int, error) {
	if totalUnits == nil || totalUnits.Sign() == 0 {
		return nil, airdrop.ErrDivisionByZero
	}
	if rewardAmount == nil || units == 0 {
		return big.NewInt(0), nil
	}
	product := new(big.Int).Mul(rewardAmount, new(big.Int).SetUint64(uint64(units)))
	return product.Quo(product, totalUnits), nil
}
