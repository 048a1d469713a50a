// Package sink implements the per-station set of time-limited recording
// outputs that a station worker fans incoming bytes into.
package sink

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/arung-agamani/stationkeeper/internal/metrics"
	"github.com/arung-agamani/stationkeeper/internal/notify"
)

// Sink is a single recording destination: bytes written to it are appended
// until ValidUntil has passed, at which point the registry closes Output and
// drops it from the broadcast set.
type Sink struct {
	// Name identifies the sink for logging and the admin status view, e.g.
	// "<station>-<programme>".
	Name       string
	ValidUntil time.Time
	Output     io.WriteCloser
}

func (s *Sink) expired(now time.Time) bool {
	return now.After(s.ValidUntil)
}

// Info is a read-only snapshot of a Sink's state, safe to hand outside the
// registry's lock (used by the admin status endpoint and metrics).
type Info struct {
	Name       string    `json:"name"`
	ValidUntil time.Time `json:"validUntil"`
}

// Registry is the mutable, mutex-guarded set of sinks belonging to one
// station. The scheduler attaches sinks; the station worker broadcasts
// incoming chunks and evicts expired ones. Both sides acquire the same lock
// for the minimal span required, per the single-station-guard policy.
type Registry struct {
	station   string
	publisher notify.Publisher

	mu    sync.Mutex
	sinks []*Sink
}

// New builds an empty registry for the named station. The registry starts
// with a no-op publisher; call SetPublisher once the process's full
// notify.Publisher is assembled.
func New(station string) *Registry {
	return &Registry{station: station, publisher: notify.Nop{}}
}

// SetPublisher wires p as the registry's eviction-event sink. Safe to call
// before Broadcast is ever invoked; not safe to call concurrently with it.
func (r *Registry) SetPublisher(p notify.Publisher) {
	if p == nil {
		p = notify.Nop{}
	}
	r.publisher = p
}

// Attach appends sink to the registry's broadcast set. Safe to call
// concurrently with Broadcast.
func (r *Registry) Attach(s *Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
	slog.Info("sink attached", "station", r.station, "sink", s.Name, "valid_until", s.ValidUntil)
}

// Broadcast evicts every sink whose ValidUntil has passed (closing its
// output as it drops), then writes chunk to every surviving sink. A write
// error on one sink is logged and that sink is dropped; it does not affect
// the others.
func (r *Registry) Broadcast(chunk []byte, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	survivors := make([]*Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		if s.expired(now) {
			if err := s.Output.Close(); err != nil {
				slog.Warn("sink close error", "station", r.station, "sink", s.Name, "error", err)
			}
			slog.Info("sink evicted", "station", r.station, "sink", s.Name)
			r.publisher.Publish(notify.Event{Station: r.station, Kind: notify.KindSinkEvicted, Detail: s.Name})
			continue
		}

		if _, err := s.Output.Write(chunk); err != nil {
			slog.Warn("sink write error", "station", r.station, "sink", s.Name, "error", err)
			if cerr := s.Output.Close(); cerr != nil {
				slog.Warn("sink close error", "station", r.station, "sink", s.Name, "error", cerr)
			}
			continue
		}

		survivors = append(survivors, s)
	}
	r.sinks = survivors
	metrics.SinkActive.WithLabelValues(r.station).Set(float64(len(survivors)))
}

// Len reports the number of currently attached sinks (not yet evicted).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// Snapshot returns a point-in-time copy of every attached sink's metadata.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, len(r.sinks))
	for i, s := range r.sinks {
		out[i] = Info{Name: s.Name, ValidUntil: s.ValidUntil}
	}
	return out
}
