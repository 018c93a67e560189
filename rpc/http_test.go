package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
)

func testPool(b byte) airdrop.PoolID {
	var id airdrop.PoolID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	require.NoError(t, err)
}

func TestClaimRewardsEndToEnd(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	ownerToken := env.token(t, env.owner)
	creator := mustKey(t).PubKey().Address()
	claimant := mustKey(t).PubKey().Address()
	pool := testPool(0x11)

	reply := env.call(t, ownerToken, "bank_credit", creditParams{Address: creator.String(), Asset: "ZNHB", Amount: "1000"})
	require.Nil(t, reply.Error)
	reply = env.call(t, ownerToken, "airdrop_whitelistAddress", addressParams{Address: creator.String()})
	require.Nil(t, reply.Error)

	reply = env.call(t, env.token(t, creator), "airdrop_createCheckpoint", createCheckpointParams{
		Pool: pool.String(), TotalUnits: "100", Asset: "ZNHB", Amount: "1000",
	})
	require.Nil(t, reply.Error)
	var cp checkpointJSON
	require.NoError(t, json.Unmarshal(reply.Result, &cp))
	require.Equal(t, "ZNHB", cp.RewardAsset)
	require.Equal(t, "100", cp.TotalEligibleUnits)

	sig := nativeairdrop.SignClaim(env.signer, claimant, pool, 25)
	claim := claimRewardsParams{Entries: []claimEntryParams{{Pool: pool.String(), Units: 25, Signature: hex.EncodeToString(sig[:])}}}
	reply = env.call(t, env.token(t, claimant), "airdrop_claimRewards", claim)
	require.Nil(t, reply.Error)
	var settlement settlementJSON
	require.NoError(t, json.Unmarshal(reply.Result, &settlement))
	require.Equal(t, "0", settlement.Native)
	require.Equal(t, []paymentJSON{{Asset: "ZNHB", Amount: "250"}}, settlement.Transfers)
	require.Equal(t, claimant.String(), settlement.Claimant)

	reply = env.call(t, "", "airdrop_getRewardsClaimed", claimedParams{Claimant: claimant.String(), Pool: pool.String()})
	require.Nil(t, reply.Error)
	require.JSONEq(t, `{"claimed":true}`, string(reply.Result))

	reply = env.call(t, "", "bank_getBalance", balanceParams{Address: claimant.String(), Asset: "ZNHB"})
	require.Nil(t, reply.Error)
	var balance balanceResult
	require.NoError(t, json.Unmarshal(reply.Result, &balance))
	require.Equal(t, "250", balance.Balance)

	reply = env.call(t, env.token(t, claimant), "airdrop_claimRewards", claim)
	require.NotNil(t, reply.Error)
	require.Equal(t, http.StatusConflict, reply.Status)
	require.Equal(t, codeAirdropConflict, reply.Error.Code)
}

func TestClaimRewardsRejectsForgedSignature(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	claimant := mustKey(t).PubKey().Address()
	sig := nativeairdrop.SignClaim(mustKey(t), claimant, testPool(0x01), 5)
	reply := env.call(t, env.token(t, claimant), "airdrop_claimRewards", claimRewardsParams{
		Entries: []claimEntryParams{{Pool: testPool(0x01).String(), Units: 5, Signature: hex.EncodeToString(sig[:])}},
	})
	require.NotNil(t, reply.Error)
	require.Equal(t, codeAirdropBadSignature, reply.Error.Code)
}

func TestMutatingMethodsRequireToken(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	reply := env.call(t, "", "airdrop_withdrawAll", withdrawParams{})
	require.Equal(t, http.StatusUnauthorized, reply.Status)
	require.Equal(t, codeUnauthorized, reply.Error.Code)

	wrongIssuer, err := MintToken(testJWTSecret, env.owner, "someone-else", "unit-tests", time.Hour, time.Now())
	require.NoError(t, err)
	reply = env.call(t, wrongIssuer, "airdrop_withdrawAll", withdrawParams{})
	require.Equal(t, http.StatusUnauthorized, reply.Status)

	forged, err := MintToken("other-secret", env.owner, "rpc-tests", "unit-tests", time.Hour, time.Now())
	require.NoError(t, err)
	reply = env.call(t, forged, "airdrop_withdrawAll", withdrawParams{})
	require.Equal(t, http.StatusUnauthorized, reply.Status)

	expired, err := MintToken(testJWTSecret, env.owner, "rpc-tests", "unit-tests", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	reply = env.call(t, expired, "airdrop_withdrawAll", withdrawParams{})
	require.Equal(t, http.StatusUnauthorized, reply.Status)
}

func TestOwnerOnlyMethods(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	stranger := mustKey(t).PubKey().Address()
	newSigner := mustKey(t).PubKey().Address()

	reply := env.call(t, env.token(t, stranger), "airdrop_changeSigner", signerParams{Signer: newSigner.String()})
	require.Equal(t, http.StatusForbidden, reply.Status)
	require.Equal(t, codeAirdropForbidden, reply.Error.Code)

	reply = env.call(t, env.token(t, env.owner), "airdrop_changeSigner", signerParams{Signer: newSigner.String()})
	require.Nil(t, reply.Error)

	reply = env.call(t, "", "airdrop_getSigner", nil)
	require.Nil(t, reply.Error)
	require.JSONEq(t, `{"signer":"`+newSigner.String()+`"}`, string(reply.Result))

	reply = env.call(t, env.token(t, env.owner), "airdrop_withdrawAll", withdrawParams{Asset: "ZNHB"})
	require.Equal(t, http.StatusBadRequest, reply.Status)
	require.Equal(t, codeAirdropInvalidParams, reply.Error.Code)
}

func TestGetCheckpointUnknownPool(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	reply := env.call(t, "", "airdrop_getCheckpoint", poolParams{Pool: testPool(0x42).String()})
	require.Equal(t, http.StatusNotFound, reply.Status)
	require.Equal(t, codeAirdropNotFound, reply.Error.Code)

	reply = env.call(t, "", "airdrop_getCheckpoint", poolParams{Pool: "0x1234"})
	require.Equal(t, codeInvalidParams, reply.Error.Code)
}

func TestNonPositiveAmountsRejectedAsParams(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	token := env.token(t, env.owner)

	reply := env.call(t, token, "airdrop_createCheckpoint", createCheckpointParams{
		Pool: testPool(0x21).String(), TotalUnits: "0", Asset: "ZNHB", Amount: "10",
	})
	require.Equal(t, http.StatusBadRequest, reply.Status)
	require.Equal(t, codeInvalidParams, reply.Error.Code)
	require.Contains(t, reply.Error.Message, "totalUnits must be positive")

	reply = env.call(t, token, "airdrop_createCheckpoint", createCheckpointParams{
		Pool: testPool(0x21).String(), TotalUnits: "10", Asset: "ZNHB", Amount: "-5",
	})
	require.Equal(t, codeInvalidParams, reply.Error.Code)
	require.Contains(t, reply.Error.Message, "amount must be positive")

	reply = env.call(t, token, "bank_credit", creditParams{Address: env.owner.String(), Asset: "ZNHB", Amount: "0"})
	require.Equal(t, codeInvalidParams, reply.Error.Code)
	require.Contains(t, reply.Error.Message, "amount must be positive")
}

func TestGetSettlementsWithoutHistory(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	reply := env.call(t, "", "airdrop_getSettlements", settlementsParams{Claimant: env.owner.String()})
	require.Equal(t, http.StatusServiceUnavailable, reply.Status)
	require.Equal(t, codeAirdropUnavailable, reply.Error.Code)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	reply := env.call(t, "", "airdrop_unknown", nil)
	require.Equal(t, http.StatusNotFound, reply.Status)
	require.Equal(t, codeMethodNotFound, reply.Error.Code)

	reply = env.call(t, "", "airdrop_getCheckpoint", map[string]string{"pool": testPool(1).String(), "extra": "x"})
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	oversized := bytes.Repeat([]byte("a"), maxRequestBytes+1)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(oversized)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuthDisabledUsesCallerHeader(t *testing.T) {
	env := newTestEnv(t, ServerConfig{Auth: AuthConfig{Enabled: false, Issuer: "dev"}})
	newSigner := mustKey(t).PubKey().Address()
	params, err := json.Marshal(signerParams{Signer: newSigner.String()})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 7, "method": "airdrop_changeSigner", "params": []json.RawMessage{params}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(CallerHeader, env.owner.String())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	signer, err := env.engine.Signer()
	require.NoError(t, err)
	require.Equal(t, newSigner, signer)
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}})
	now := time.Unix(1_700_000_000, 0)
	env.server.limiter.clockNow = func() time.Time { return now }

	reply := env.call(t, "", "airdrop_getSigner", nil)
	require.Nil(t, reply.Error)
	reply = env.call(t, "", "airdrop_getSigner", nil)
	require.Equal(t, http.StatusTooManyRequests, reply.Status)
	require.Equal(t, codeRateLimited, reply.Error.Code)
}

func TestClientIDTrustsForwardedOnlyFromLoopback(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "10.0.0.5", clientID(req))

	req.RemoteAddr = "127.0.0.1:1234"
	require.Equal(t, "203.0.113.9", clientID(req))
}
