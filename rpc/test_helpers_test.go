package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	nhbstate "github.com/dan-merlea/sc-krogan-public/core/state"
	"github.com/dan-merlea/sc-krogan-public/crypto"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
	"github.com/dan-merlea/sc-krogan-public/storage"
)

const testJWTSecret = "rpc-test-secret"

type testEnv struct {
	server  *Server
	handler http.Handler
	engine  *nativeairdrop.Engine
	owner   crypto.Address
	signer  *crypto.PrivateKey
	hub     *EventHub
}

func mustKey(t testing.TB) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func newTestEnv(t testing.TB, cfg ServerConfig) *testEnv {
	t.Helper()
	engine := nativeairdrop.NewEngine()
	engine.SetState(nativeairdrop.StateStore(nhbstate.NewManager(storage.NewMemDB())))
	engine.SetClock(clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)))
	hub := NewEventHub()
	engine.SetEmitter(hub)

	env := &testEnv{engine: engine, owner: mustKey(t).PubKey().Address(), signer: mustKey(t), hub: hub}
	require.NoError(t, engine.Init(env.owner, env.signer.PubKey().Address()))

	if cfg.Auth == (AuthConfig{}) {
		cfg.Auth = AuthConfig{Enabled: true, Secret: testJWTSecret, Issuer: "rpc-tests", Audience: "unit-tests"}
	}
	srv, err := NewServer(engine, cfg)
	require.NoError(t, err)
	srv.SetHub(hub)
	env.server = srv
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) token(t testing.TB, caller crypto.Address) string {
	t.Helper()
	token, err := MintToken(testJWTSecret, caller, "rpc-tests", "unit-tests", time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

type rpcReply struct {
	Status int
	Result json.RawMessage
	Error  *RPCError
}

func (e *testEnv) call(t testing.TB, token, method string, params interface{}) rpcReply {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		payload["params"] = []json.RawMessage{raw}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rpcReply{Status: rec.Code, Result: resp.Result, Error: resp.Error}
}
