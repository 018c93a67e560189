package airdrop

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"lukechampine.com/blake3"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

// EntryReward is the computed reward for one claim entry.
type EntryReward struct {
	Pool   airdrop.PoolID
	Units  uint32
	Reward airdrop.Payment
}

// Settlement is the receipt of a committed claim batch.
type Settlement struct {
	ID           [32]byte
	Claimant     crypto.Address
	Rewards      []EntryReward
	Native       *big.Int
	Transfers    []airdrop.Payment
	TransferRoot common.Hash
	SettledAt    int64
}

// Payments returns every transfer the settlement executed, the native total
// first when non-zero.
func (s *Settlement) Payments() []airdrop.Payment {
	if s == nil {
		return nil
	}
	out := make([]airdrop.Payment, 0, len(s.Transfers)+1)
	if s.Native != nil && s.Native.Sign() > 0 {
		out = append(out, airdrop.Payment{Asset: airdrop.NativeAsset, Amount: new(big.Int).Set(s.Native)})
	}
	for _, p := range s.Transfers {
		out = append(out, p.Clone())
	}
	return out
}

func settlementID(claimant crypto.Address, entries []airdrop.ClaimEntry, settledAt int64) [32]byte {
	var buf bytes.Buffer
	buf.WriteString("airdrop/settlement")
	buf.Write(claimant[:])
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], uint64(settledAt))
	buf.Write(scratch[:])
	for _, entry := range entries {
		buf.Write(entry.Pool[:])
		binary.BigEndian.PutUint32(scratch[:4], entry.Units)
		buf.Write(scratch[:4])
		buf.Write(entry.Signature[:])
	}
	return blake3.Sum256(buf.Bytes())
}

type transferLeaf struct {
	Asset  string
	Nonce  uint64
	Amount *big.Int
}

// ComputeTransferRoot builds an Ethereum-style trie over the RLP-encoded
// payments keyed by their RLP-encoded index and returns its root.
func ComputeTransferRoot(payments []airdrop.Payment) (common.Hash, error) {
	backend := memorydb.New()
	db := rawdb.NewDatabase(backend)
	trieDB := triedb.NewDatabase(db, triedb.HashDefaults)
	trie, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	for i, p := range payments {
		key := rlp.AppendUint64(nil, uint64(i))
		amount := p.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		payload, err := rlp.EncodeToBytes(&transferLeaf{Asset: p.Asset, Nonce: p.Nonce, Amount: amount})
		if err != nil {
			return common.Hash{}, err
		}
		if err := trie.Update(key, payload); err != nil {
			return common.Hash{}, err
		}
	}
	return trie.Hash(), nil
}
