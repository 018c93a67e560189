package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/dan-merlea/sc-krogan-public/core/events"
	"github.com/dan-merlea/sc-krogan-public/core/types"
)

func TestEventHubFiltersByPrefix(t *testing.T) {
	hub := NewEventHub()
	all, cancelAll := hub.Subscribe("")
	defer cancelAll()
	whitelist, cancelWhitelist := hub.Subscribe("airdrop.whitelist")
	defer cancelWhitelist()

	hub.Emit(events.AirdropWithdrawn{Asset: "NHB", Amount: big.NewInt(5)})

	select {
	case evt := <-all:
		require.Equal(t, events.TypeAirdropWithdrawn, evt.Type)
	default:
		t.Fatalf("expected event on unfiltered subscriber")
	}
	select {
	case evt := <-whitelist:
		t.Fatalf("unexpected event %s on filtered subscriber", evt.Type)
	default:
	}
}

func TestEventHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewEventHub()
	updates, cancel := hub.Subscribe("")
	defer cancel()
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Emit(events.AirdropWithdrawn{Asset: "NHB", Amount: big.NewInt(int64(i))})
	}
	require.Len(t, updates, subscriberBuffer)

	cancel()
	cancel()
	hub.mu.Lock()
	defer hub.mu.Unlock()
	require.Empty(t, hub.subs)
}

func TestEventStreamOverWebsocket(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?type=airdrop.whitelist"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.Eventually(t, func() bool {
		env.hub.mu.Lock()
		defer env.hub.mu.Unlock()
		return len(env.hub.subs) == 1
	}, time.Second, 10*time.Millisecond)

	listed := mustKey(t).PubKey().Address()
	require.NoError(t, env.engine.Whitelist(env.owner, listed))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeAirdropWhitelistAdded, evt.Type)
	require.Equal(t, listed.String(), evt.Attributes["address"])
}
