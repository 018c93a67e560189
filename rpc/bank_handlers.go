package rpc

import (
	"net/http"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	"github.com/dan-merlea/sc-krogan-public/crypto"
)

type balanceParams struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Nonce   uint64 `json:"nonce"`
}

type creditParams struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Nonce   uint64 `json:"nonce"`
	Amount  string `json:"amount"`
}

type balanceResult struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func (s *Server) handleGetBalance(r *http.Request, req *RPCRequest, _ crypto.Address) (interface{}, *RPCError) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset := params.Asset
	if asset == "" {
		asset = airdrop.NativeAsset
	}
	normalized, err := airdrop.NormalizeAsset(asset)
	if err != nil {
		return nil, airdropError(err)
	}
	balance, err := s.airdrop.Balance(addr, normalized, params.Nonce)
	if err != nil {
		return nil, airdropError(err)
	}
	return balanceResult{Address: addr.String(), Asset: normalized, Nonce: params.Nonce, Balance: balance.String()}, nil
}

func (s *Server) handleCredit(r *http.Request, req *RPCRequest, caller crypto.Address) (interface{}, *RPCError) {
	var params creditParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parsePositive("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payment := airdrop.Payment{Asset: params.Asset, Nonce: params.Nonce, Amount: amount}
	if err := s.airdrop.Credit(caller, addr, payment); err != nil {
		return nil, airdropError(err)
	}
	return okResult{OK: true}, nil
}
