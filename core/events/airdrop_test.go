package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

func TestAirdropEventAttributes(t *testing.T) {
	var owner crypto.Address
	owner[0] = 1
	var pool airdrop.PoolID
	pool[31] = 2

	created := AirdropCheckpointCreated{
		Pool:  pool,
		Owner: owner,
		Checkpoint: &airdrop.Checkpoint{
			TotalEligibleUnits: big.NewInt(3),
			RewardAsset:        "TOK",
			RewardAmount:       big.NewInt(100),
		},
		CreatedAt: 1700000000,
	}
	evt := Render(created)
	require.Equal(t, TypeAirdropCheckpointCreated, evt.Type)
	require.Equal(t, "100", evt.Attributes["amount"])
	require.Equal(t, "3", evt.Attributes["totalUnits"])
	require.Equal(t, owner.String(), evt.Attributes["owner"])
	require.Equal(t, pool.String(), evt.Attributes["pool"])

	removed := Render(AirdropWhitelistChanged{Address: owner})
	require.Equal(t, TypeAirdropWhitelistRemoved, removed.Type)

	withdrawn := Render(AirdropWithdrawn{Owner: owner, Asset: "NHB"})
	require.Equal(t, "0", withdrawn.Attributes["amount"])
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	var emitter Emitter = rec
	emitter.Emit(AirdropSignerChanged{})
	emitter.Emit(AirdropWhitelistChanged{Added: true})
	require.Equal(t, []string{TypeAirdropSignerChanged, TypeAirdropWhitelistAdded}, rec.Types())
}
