package airdrop

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePoolID(t *testing.T) {
	var want PoolID
	for i := range want {
		want[i] = 0xBB
	}
	got, err := ParsePoolID("0x" + strings.Repeat("bb", 32))
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = ParsePoolID(strings.Repeat("BB", 32))
	require.NoError(t, err)
	require.Equal(t, want, got)

	if _, err := ParsePoolID("0xbb"); !errors.Is(err, ErrInvalidPoolID) {
		t.Fatalf("expected invalid pool id, got %v", err)
	}
	if _, err := ParsePoolID(strings.Repeat("zz", 32)); !errors.Is(err, ErrInvalidPoolID) {
		t.Fatalf("expected invalid pool id for non-hex, got %v", err)
	}
}

func TestNormalizeAsset(t *testing.T) {
	asset, err := NormalizeAsset("  WEGLD-bd4d79 ")
	require.NoError(t, err)
	require.Equal(t, "WEGLD-bd4d79", asset)

	lower, err := NormalizeAsset("nhb")
	require.NoError(t, err)
	require.NotEqual(t, NativeAsset, lower)

	for _, bad := range []string{"", "  ", "has space", "emoji😀", strings.Repeat("A", 33)} {
		if _, err := NormalizeAsset(bad); !errors.Is(err, ErrInvalidAsset) {
			t.Fatalf("asset %q: expected ErrInvalidAsset, got %v", bad, err)
		}
	}
}

func TestCheckpointCloneIsDeep(t *testing.T) {
	cp := &Checkpoint{TotalEligibleUnits: big.NewInt(3), RewardAsset: "TOK", RewardAmount: big.NewInt(100)}
	clone := cp.Clone()
	clone.RewardAmount.SetInt64(1)
	require.Equal(t, int64(100), cp.RewardAmount.Int64())
	require.Nil(t, (*Checkpoint)(nil).Clone())
}

func TestPaymentClassification(t *testing.T) {
	native := Payment{Asset: NativeAsset, Amount: big.NewInt(1)}
	require.True(t, native.IsNative())
	require.False(t, native.IsIndexed())

	nft := Payment{Asset: "NFT", Nonce: 7, Amount: big.NewInt(1)}
	require.True(t, nft.IsIndexed())
	require.False(t, nft.SameAsset(Payment{Asset: "NFT", Nonce: 8}))
	require.Equal(t, "NFT/7:1", nft.String())
}
