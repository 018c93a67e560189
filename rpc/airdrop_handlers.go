package rpc

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
	"github.com/dan-merlea/sc-krogan-public/integrations/history"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
	"github.com/dan-merlea/sc-krogan-public/native/bank"
	"github.com/dan-merlea/sc-krogan-public/native/common"
)

const (
	codeAirdropInvalidParams = -32050
	codeAirdropForbidden     = -32051
	codeAirdropBadSignature  = -32052
	codeAirdropConflict      = -32053
	codeAirdropNotFound      = -32054
	codeAirdropUnavailable   = -32055
	codeAirdropInsufficient  = -32056
)

const maxSettlementsLimit = 200

// AirdropService is the engine surface served over JSON-RPC.
type AirdropService interface {
	CreateCheckpoint(caller crypto.Address, pool airdrop.PoolID, totalUnits *big.Int, deposit airdrop.Payment) (*airdrop.Checkpoint, error)
	Claim(ctx context.Context, caller crypto.Address, entries []airdrop.ClaimEntry) (*nativeairdrop.Settlement, error)
	Checkpoint(pool airdrop.PoolID) (*airdrop.Checkpoint, error)
	Claimed(claimant crypto.Address, pool airdrop.PoolID) (bool, error)
	Signer() (crypto.Address, error)
	ChangeSigner(caller, signer crypto.Address) error
	Whitelist(caller, addr crypto.Address) error
	RemoveWhitelist(caller, addr crypto.Address) error
	WithdrawAll(caller crypto.Address, asset string, nonce uint64) (airdrop.Payment, error)
	Balance(addr crypto.Address, asset string, nonce uint64) (*big.Int, error)
	Credit(caller, addr crypto.Address, payment airdrop.Payment) error
}

// HistoryReader serves settlement history queries.
type HistoryReader interface {
	ListByClaimant(ctx context.Context, claimant string, limit int) ([]history.Settlement, error)
}

type createCheckpointParams struct {
	Pool       string `json:"pool"`
	TotalUnits string `json:"totalUnits"`
	Asset      string `json:"asset"`
	Nonce      uint64 `json:"nonce"`
	Amount     string `json:"amount"`
}

type claimEntryParams struct {
	Pool      string `json:"pool"`
	Units     uint32 `json:"units"`
	Signature string `json:"signature"`
}

type claimRewardsParams struct {
	Entries []claimEntryParams `json:"entries"`
}

type poolParams struct {
	Pool string `json:"pool"`
}

type claimedParams struct {
	Claimant string `json:"claimant"`
	Pool     string `json:"pool"`
}

type addressParams struct {
	Address string `json:"address"`
}

type signerParams struct {
	Signer string `json:"signer"`
}

type withdrawParams struct {
	Asset string `json:"asset"`
	Nonce uint64 `json:"nonce"`
}

type settlementsParams struct {
	Claimant string `json:"claimant"`
	Limit    int    `json:"limit"`
}

type paymentJSON struct {
	Asset  string `json:"asset"`
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
}

type checkpointJSON struct {
	Pool               string `json:"pool"`
	TotalEligibleUnits string `json:"totalEligibleUnits"`
	RewardAsset        string `json:"rewardAsset"`
	AssetNonce         uint64 `json:"assetNonce"`
	RewardAmount       string `json:"rewardAmount"`
}

type entryRewardJSON struct {
	Pool   string      `json:"pool"`
	Units  uint32      `json:"units"`
	Reward paymentJSON `json:"reward"`
}

type settlementJSON struct {
	ID           string            `json:"id"`
	Claimant     string            `json:"claimant"`
	Native       string            `json:"native"`
	Transfers    []paymentJSON     `json:"transfers"`
	Rewards      []entryRewardJSON `json:"rewards"`
	TransferRoot string            `json:"transferRoot"`
	SettledAt    int64             `json:"settledAt"`
}

type historyJSON struct {
	Settlement   string        `json:"settlement"`
	Claimant     string        `json:"claimant"`
	Entries      int           `json:"entries"`
	Native       string        `json:"native"`
	TransferRoot string        `json:"transferRoot"`
	SettledAt    string        `json:"settledAt"`
	Transfers    []historyLine `json:"transfers"`
}

type historyLine struct {
	Kind   string `json:"kind"`
	Asset  string `json:"asset"`
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func formatPayment(p airdrop.Payment) paymentJSON {
	amount := "0"
	if p.Amount != nil {
		amount = p.Amount.String()
	}
	return paymentJSON{Asset: p.Asset, Nonce: p.Nonce, Amount: amount}
}

func formatCheckpoint(pool airdrop.PoolID, cp *airdrop.Checkpoint) checkpointJSON {
	return checkpointJSON{
		Pool:               pool.String(),
		TotalEligibleUnits: cp.TotalEligibleUnits.String(),
		RewardAsset:        cp.RewardAsset,
		AssetNonce:         cp.AssetNonce,
		RewardAmount:       cp.RewardAmount.String(),
	}
}

func formatSettlement(s *nativeairdrop.Settlement) settlementJSON {
	out := settlementJSON{
		ID:           "0x" + hex.EncodeToString(s.ID[:]),
		Claimant:     s.Claimant.String(),
		Native:       "0",
		Transfers:    make([]paymentJSON, 0, len(s.Transfers)),
		Rewards:      make([]entryRewardJSON, 0, len(s.Rewards)),
		TransferRoot: s.TransferRoot.Hex(),
		SettledAt:    s.SettledAt,
	}
	if s.Native != nil {
		out.Native = s.Native.String()
	}
	for _, p := range s.Transfers {
		out.Transfers = append(out.Transfers, formatPayment(p))
	}
	for _, r := range s.Rewards {
		out.Rewards = append(out.Rewards, entryRewardJSON{Pool: r.Pool.String(), Units: r.Units, Reward: formatPayment(r.Reward)})
	}
	return out
}

func parsePositive(field, value string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("%s must be a base-10 integer", field)
	}
	if amount.Sign() <= 0 {
		return nil, invalidParams("%s must be positive", field)
	}
	return amount, nil
}

func parseAddressParam(field, value string) (crypto.Address, *RPCError) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid %s: %v", field, err)
	}
	return addr, nil
}

func parsePoolParam(value string) (airdrop.PoolID, *RPCError) {
	pool, err := airdrop.ParsePoolID(value)
	if err != nil {
		return airdrop.PoolID{}, invalidParams("invalid pool: %v", err)
	}
	return pool, nil
}

func parseSignature(value string) ([64]byte, *RPCError) {
	var sig [64]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(sig) {
		return sig, invalidParams("signature must be %d hex-encoded bytes", len(sig))
	}
	copy(sig[:], raw)
	return sig, nil
}

// airdropError maps engine failures onto JSON-RPC codes and HTTP statuses.
func airdropError(err error) *RPCError {
	if err == nil {
		return nil
	}
	status, code := http.StatusInternalServerError, codeServerError
	switch {
	case errors.Is(err, airdrop.ErrUnauthorized), errors.Is(err, airdrop.ErrOwnerNotWhitelisted):
		status, code = http.StatusForbidden, codeAirdropForbidden
	case errors.Is(err, airdrop.ErrInvalidSignature):
		status, code = http.StatusBadRequest, codeAirdropBadSignature
	case errors.Is(err, airdrop.ErrAlreadyClaimed), errors.Is(err, airdrop.ErrDuplicatePool):
		status, code = http.StatusConflict, codeAirdropConflict
	case errors.Is(err, airdrop.ErrUnknownPool):
		status, code = http.StatusNotFound, codeAirdropNotFound
	case errors.Is(err, common.ErrModulePaused), errors.Is(err, airdrop.ErrSignerNotSet), errors.Is(err, airdrop.ErrNotInitialised):
		status, code = http.StatusServiceUnavailable, codeAirdropUnavailable
	case errors.Is(err, bank.ErrInsufficientBalance), errors.Is(err, airdrop.ErrSettlementFailed):
		status, code = http.StatusConflict, codeAirdropInsufficient
	case errors.Is(err, airdrop.ErrInvalidAmount), errors.Is(err, airdrop.ErrInvalidAsset),
		errors.Is(err, airdrop.ErrInvalidPoolID), errors.Is(err, airdrop.ErrBatchTooLarge),
		errors.Is(err, airdrop.ErrDivisionByZero), errors.Is(err, airdrop.ErrNothingToWithdraw),
		errors.Is(err, bank.ErrInvalidAmount), errors.Is(err, bank.ErrBalanceOverflow),
		errors.Is(err, crypto.ErrInvalidAddress):
		status, code = http.StatusBadRequest, codeAirdropInvalidParams
	}
	return &RPCError{status: status, Code: code, Message: err.Error()}
}

func (s *Server) handleCreateCheckpoint(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	var params createCheckpointParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	pool, rpcErr := parsePoolParam(params.Pool)
	if rpcErr != nil {
		return nil, rpcErr
	}
	totalUnits, rpcErr := parsePositive("totalUnits", params.TotalUnits)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parsePositive("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	deposit := airdrop.Payment{Asset: params.Asset, Nonce: params.Nonce, Amount: amount}
	cp, err := s.airdrop.CreateCheckpoint(caller, pool, totalUnits, deposit)
	if err != nil {
		return nil, airdropError(err)
	}
	return formatCheckpoint(pool, cp), nil
}

func (s *Server) handleClaimRewards(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	var params claimRewardsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	entries := make([]airdrop.ClaimEntry, 0, len(params.Entries))
	for i, raw := range params.Entries {
		pool, rpcErr := parsePoolParam(raw.Pool)
		if rpcErr != nil {
			rpcErr.Data = map[string]int{"entry": i}
			return nil, rpcErr
		}
		sig, rpcErr := parseSignature(raw.Signature)
		if rpcErr != nil {
			rpcErr.Data = map[string]int{"entry": i}
			return nil, rpcErr
		}
		entries = append(entries, airdrop.ClaimEntry{Pool: pool, Units: raw.Units, Signature: sig})
	}
	settlement, err := s.airdrop.Claim(r.Context(), caller, entries)
	if err != nil {
		return nil, airdropError(err)
	}
	return formatSettlement(settlement), nil
}

func (s *Server) handleGetCheckpoint(r *http.Request, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params poolParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	pool, rpcErr := parsePoolParam(params.Pool)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cp, err := s.airdrop.Checkpoint(pool)
	if err != nil {
		return nil, airdropError(err)
	}
	return formatCheckpoint(pool, cp), nil
}

func (s *Server) handleGetRewardsClaimed(r *http.Request, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params claimedParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	claimant, rpcErr := parseAddressParam("claimant", params.Claimant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pool, rpcErr := parsePoolParam(params.Pool)
	if rpcErr != nil {
		return nil, rpcErr
	}
	claimed, err := s.airdrop.Claimed(claimant, pool)
	if err != nil {
		return nil, airdropError(err)
	}
	return map[string]bool{"claimed": claimed}, nil
}

func (s *Server) handleGetSigner(r *http.Request, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	signer, err := s.airdrop.Signer()
	if err != nil {
		return nil, airdropError(err)
	}
	return map[string]string{"signer": signer.String()}, nil
}

func (s *Server) handleChangeSigner(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	var params signerParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	signer, rpcErr := parseAddressParam("signer", params.Signer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.airdrop.ChangeSigner(caller, signer); err != nil {
		return nil, airdropError(err)
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleWhitelistAddress(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	return s.updateWhitelist(req, caller, s.airdrop.Whitelist)
}

func (s *Server) handleRemoveWhitelistAddress(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	return s.updateWhitelist(req, caller, s.airdrop.RemoveWhitelist)
}

func (s *Server) updateWhitelist(req *RPCRequest, caller crypto.Address, apply func(caller, addr crypto.Address) error) (interface{}, *RPCError) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := apply(caller, addr); err != nil {
		return nil, airdropError(err)
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleWithdrawAll(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	payment, err := s.airdrop.WithdrawAll(caller, params.Asset, params.Nonce)
	if err != nil {
		return nil, airdropError(err)
	}
	return formatPayment(payment), nil
}

func (s *Server) handleGetSettlements(r *http.Request, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	if s.history == nil {
		return nil, &RPCError{status: http.StatusServiceUnavailable, Code: codeAirdropUnavailable, Message: "settlement history disabled"}
	}
	var params settlementsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	claimant, rpcErr := parseAddressParam("claimant", params.Claimant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if params.Limit < 0 || params.Limit > maxSettlementsLimit {
		return nil, invalidParams("limit must be between 0 and %d", maxSettlementsLimit)
	}
	rows, err := s.history.ListByClaimant(r.Context(), claimant.String(), params.Limit)
	if err != nil {
		return nil, &RPCError{status: http.StatusInternalServerError, Code: codeServerError, Message: "failed to load settlements", Data: err.Error()}
	}
	out := make([]historyJSON, 0, len(rows))
	for _, row := range rows {
		item := historyJSON{
			Settlement:   row.Hash,
			Claimant:     row.Claimant,
			Entries:      row.EntryCount,
			Native:       row.NativeAmount,
			TransferRoot: row.TransferRoot,
			SettledAt:    row.SettledAt.UTC().Format(time.RFC3339),
			Transfers:    make([]historyLine, 0, len(row.Transfers)),
		}
		for _, t := range row.Transfers {
			item.Transfers = append(item.Transfers, historyLine{Kind: t.Kind, Asset: t.Asset, Nonce: t.Nonce, Amount: t.Amount})
		}
		out = append(out, item)
	}
	return out, nil
}
