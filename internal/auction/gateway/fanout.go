package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/gavelhouse/gavel/internal/auction/events"
)

// Sink receives a copy of every broadcast event, e.g. for relaying to an
// external message bus. Sink failures never affect local delivery.
type Sink interface {
	Publish(event *events.Event) error
}

// Fanout delivers events to connections: broadcast to every live connection,
// or targeted to the one connection an identity resolves to. There is no
// delivery guarantee beyond "sent if still live when iterated" and no
// acknowledgment.
type Fanout struct {
	registry *Registry
	sinks    []Sink
}

// NewFanout creates an event fanout over the given registry.
func NewFanout(registry *Registry, sinks ...Sink) *Fanout {
	return &Fanout{
		registry: registry,
		sinks:    sinks,
	}
}

// Broadcast delivers one event to every connection live at dispatch time.
func (f *Fanout) Broadcast(event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	conns := f.registry.AllLive()
	delivered := 0
	for _, conn := range conns {
		if conn.trySend(data) {
			delivered++
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Int("connections", delivered).
		Msg("event broadcast")

	for _, sink := range f.sinks {
		if err := sink.Publish(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("sink publish failed")
		}
	}
}

// SendTo delivers one event to the connection currently mapped to identity.
// An offline identity is a no-op, not an error.
func (f *Fanout) SendTo(identity string, event *events.Event) {
	conn, ok := f.registry.Resolve(identity)
	if !ok {
		log.Debug().
			Str("username", identity).
			Str("event_type", string(event.Type)).
			Msg("recipient offline, dropping targeted event")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for targeted delivery")
		return
	}
	conn.trySend(data)
}
