package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dan-merlea/sc-krogan-public/core/airdrop"
	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
)

func sampleSettlement() *nativeairdrop.Settlement {
	return &nativeairdrop.Settlement{
		ID:        [32]byte{1},
		Native:    big.NewInt(150),
		Transfers: []airdrop.Payment{{Asset: "BADGE", Nonce: 7, Amount: big.NewInt(1)}},
		Rewards:   make([]nativeairdrop.EntryReward, 2),
		SettledAt: 1_700_000_000,
	}
}

func TestDispatcherSignsSettlementPayload(t *testing.T) {
	var (
		mu        sync.Mutex
		signature string
		body      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		signature = r.Header.Get("X-NHB-Signature")
		body = data
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.RecordSettlement(context.Background(), sampleSettlement()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return signature != ""
	}, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if signature != Sign([]byte("secret"), body) {
		t.Fatalf("unexpected signature %s", signature)
	}
	var payload SettlementPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Type != EventSettlementCommitted || payload.Entries != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Transfers) != 2 || payload.Transfers[0].Asset != airdrop.NativeAsset || payload.Transfers[1].Nonce != 7 {
		t.Fatalf("unexpected transfers: %+v", payload.Transfers)
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, time.Millisecond*10, time.Millisecond*20))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	if err := dispatcher.RecordSettlement(context.Background(), sampleSettlement()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected retries, got %d", attempts)
	}
}

func TestRecordSettlementDoesNotBlockOnStalledReceiver(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithQueueSize(2))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	var full error
	for i := 0; i < 10 && full == nil; i++ {
		full = dispatcher.RecordSettlement(ctx, sampleSettlement())
	}
	if !errors.Is(full, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", full)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("enqueue blocked for %s", elapsed)
	}
}

func TestRecordSettlementAfterClose(t *testing.T) {
	dispatcher, err := NewDispatcher("http://127.0.0.1:1", []byte("secret"))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	dispatcher.Close()
	if err := dispatcher.RecordSettlement(context.Background(), sampleSettlement()); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher(" ", []byte("secret")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://example.invalid", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
}
