package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/dan-merlea/sc-krogan-public/core/events"
	"github.com/dan-merlea/sc-krogan-public/core/types"
	"github.com/dan-merlea/sc-krogan-public/observability"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

type subscriber struct {
	prefix string
	ch     chan *types.Event
}

// EventHub fans module events out to websocket subscribers. Slow subscribers
// lose events rather than blocking the emitter.
type EventHub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[*subscriber]struct{})}
}

// Emit implements events.Emitter.
func (h *EventHub) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if rendered == nil {
		return
	}
	observability.Events().RecordEmitted(rendered.Type)
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.prefix != "" && !strings.HasPrefix(rendered.Type, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- rendered:
		default:
			observability.Events().RecordDropped()
		}
	}
}

// Subscribe registers a listener for events whose type starts with prefix.
// The returned cancel func must be called to release it.
func (h *EventHub) Subscribe(prefix string) (<-chan *types.Event, func()) {
	sub := &subscriber{prefix: strings.TrimSpace(prefix), ch: make(chan *types.Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	observability.Events().SetSubscribers(len(h.subs))
	h.mu.Unlock()
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			observability.Events().SetSubscribers(len(h.subs))
			h.mu.Unlock()
		})
	}
}

func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, cancel := h.Subscribe(r.URL.Query().Get("type"))
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-updates:
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
