package events

import "github.com/dan-merlea/sc-krogan-public/core/types"

// Event represents a structured state change emitted by the airdrop module.
type Event interface {
	EventType() string
}

// Typed is implemented by events that can render a flat attribute payload for
// subscribers such as the websocket stream.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder keeps every emitted event in order. Tests use it to assert on
// emission.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(evt Event) { r.Events = append(r.Events, evt) }

// Types returns the EventType of every recorded event.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		out = append(out, evt.EventType())
	}
	return out
}

// Render converts evt to its attribute form. Events without a payload render
// with only their type.
func Render(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if typed, ok := evt.(Typed); ok {
		return typed.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
