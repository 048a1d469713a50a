// Package notify publishes station and scheduler lifecycle events to an
// external collaborator. It is entirely best-effort: a publish failure is
// logged and never affects recording.
package notify

import "fmt"

// Kind identifies the lifecycle event being published.
type Kind string

const (
	KindReconnect      Kind = "reconnect"
	KindFirstPacket    Kind = "first_packet"
	KindPlaylistEmpty  Kind = "playlist_empty"
	KindSinkAttached   Kind = "sink_attached"
	KindSinkEvicted    Kind = "sink_evicted"
	KindEventScheduled Kind = "event_scheduled"
)

// Event is a single lifecycle notification.
type Event struct {
	Station string `json:"station"`
	Kind    Kind   `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}

// Publisher delivers lifecycle events to an external collaborator (MQTT
// broker, websocket fan-out, or nowhere at all).
type Publisher interface {
	Publish(e Event)
}

// Nop discards every event. It is the default Publisher when no external
// notification sink is configured.
type Nop struct{}

func (Nop) Publish(Event) {}

// Multi fans a single Publish out to every wrapped Publisher, e.g. both the
// MQTT broker and the admin API's websocket hub.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// Topic returns the MQTT-style topic an event would be published under:
// "stationkeeper/<station>/<kind>".
func Topic(e Event) string {
	return fmt.Sprintf("stationkeeper/%s/%s", e.Station, e.Kind)
}
