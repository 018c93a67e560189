package events

import (
	"math/big"
	"strconv"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/core/types"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

const (
	TypeAirdropCheckpointCreated = "airdrop.checkpoint.created"
	TypeAirdropRewardsClaimed    = "airdrop.rewards.claimed"
	TypeAirdropSignerChanged     = "airdrop.signer.changed"
	TypeAirdropWhitelistAdded    = "airdrop.whitelist.added"
	TypeAirdropWhitelistRemoved  = "airdrop.whitelist.removed"
	TypeAirdropWithdrawn         = "airdrop.withdrawn"
)

type AirdropCheckpointCreated struct {
	Pool       airdrop.PoolID
	Owner      crypto.Address
	Checkpoint *airdrop.Checkpoint
	CreatedAt  int64
}

func (AirdropCheckpointCreated) EventType() string { return TypeAirdropCheckpointCreated }

func (e AirdropCheckpointCreated) Event() *types.Event {
	attrs := map[string]string{
		"pool":      e.Pool.String(),
		"owner":     e.Owner.String(),
		"createdAt": strconv.FormatInt(e.CreatedAt, 10),
	}
	if e.Checkpoint != nil {
		attrs["asset"] = e.Checkpoint.RewardAsset
		attrs["nonce"] = strconv.FormatUint(e.Checkpoint.AssetNonce, 10)
		attrs["amount"] = formatAmount(e.Checkpoint.RewardAmount)
		attrs["totalUnits"] = formatAmount(e.Checkpoint.TotalEligibleUnits)
	}
	return &types.Event{Type: TypeAirdropCheckpointCreated, Attributes: attrs}
}

// AirdropRewardsClaimed is emitted once per settled claim batch.
type AirdropRewardsClaimed struct {
	Settlement [32]byte
	Claimant   crypto.Address
	Entries    int
	Native     *big.Int
	Transfers  int
}

func (AirdropRewardsClaimed) EventType() string { return TypeAirdropRewardsClaimed }

func (e AirdropRewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropRewardsClaimed,
		Attributes: map[string]string{
			"settlement": airdrop.PoolID(e.Settlement).String(),
			"claimant":   e.Claimant.String(),
			"entries":    strconv.Itoa(e.Entries),
			"native":     formatAmount(e.Native),
			"transfers":  strconv.Itoa(e.Transfers),
		},
	}
}

type AirdropSignerChanged struct {
	Previous crypto.Address
	Signer   crypto.Address
}

func (AirdropSignerChanged) EventType() string { return TypeAirdropSignerChanged }

func (e AirdropSignerChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropSignerChanged,
		Attributes: map[string]string{
			"previous": e.Previous.String(),
			"signer":   e.Signer.String(),
		},
	}
}

// AirdropWhitelistChanged covers both additions and removals.
type AirdropWhitelistChanged struct {
	Address crypto.Address
	Added   bool
}

func (e AirdropWhitelistChanged) EventType() string {
	if e.Added {
		return TypeAirdropWhitelistAdded
	}
	return TypeAirdropWhitelistRemoved
}

func (e AirdropWhitelistChanged) Event() *types.Event {
	return &types.Event{
		Type:       e.EventType(),
		Attributes: map[string]string{"address": e.Address.String()},
	}
}

type AirdropWithdrawn struct {
	Owner  crypto.Address
	Asset  string
	Nonce  uint64
	Amount *big.Int
}

func (AirdropWithdrawn) EventType() string { return TypeAirdropWithdrawn }

func (e AirdropWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropWithdrawn,
		Attributes: map[string]string{
			"owner":  e.Owner.String(),
			"asset":  e.Asset,
			"nonce":  strconv.FormatUint(e.Nonce, 10),
			"amount": formatAmount(e.Amount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
