// Package scheduler maintains the priority queue of programme occurrences
// and, at each fire time, attaches a freshly opened file sink to the owning
// station.
package scheduler

import (
	"container/heap"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arung-agamani/stationkeeper/internal/clock"
	"github.com/arung-agamani/stationkeeper/internal/metrics"
	"github.com/arung-agamani/stationkeeper/internal/notify"
	"github.com/arung-agamani/stationkeeper/internal/recurrence"
	"github.com/arung-agamani/stationkeeper/internal/sink"
)

// fireTimeLayout renders a fire time as an ISO-extended timestamp suitable
// for a filename component.
const fireTimeLayout = "2006-01-02T15:04:05"

// Programme is a named recurring recording window on one station.
type Programme struct {
	Station    string
	Name       string
	Recurrence recurrence.Predicate
	Duration   time.Duration
}

// FileOpener creates the destination directory and file for a fired
// occurrence. Abstracted so scheduler tests can run without touching a real
// filesystem.
type FileOpener interface {
	OpenAppend(dir, name string) (sink.Sink, error)
}

// Registries resolves a station name to its sink registry. Implemented by
// sink.Set, which owns every station's Registry.
type Registries interface {
	Registry(station string) (*sink.Registry, bool)
}

// Scheduler runs the single logical event loop described in the recording
// scheduler design: compute each programme's next occurrence, sleep until
// the earliest one fires, attach a sink, and re-push with strict=true.
type Scheduler struct {
	destinationPath string
	clock           clock.Clock
	files           FileOpener
	registries      Registries
	publisher       notify.Publisher

	programmes []Programme

	mu    sync.Mutex
	queue eventHeap

	// onFire, if set, is called synchronously after each event fires. Tests
	// use it to observe firings without racing on the queue.
	onFire func(*event)
}

// New builds a Scheduler over the given programme table. destinationPath is
// the root directory recordings are written under.
func New(destinationPath string, programmes []Programme, c clock.Clock, files FileOpener, registries Registries, publisher notify.Publisher) *Scheduler {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Scheduler{
		destinationPath: destinationPath,
		clock:           c,
		files:           files,
		registries:      registries,
		publisher:       publisher,
		programmes:      programmes,
	}
}

// Seed computes each programme's first occurrence from now and pushes it
// onto the queue. Must be called once before Run.
func (s *Scheduler) Seed() {
	now := s.clock.Now()
	for i, p := range s.programmes {
		fire := p.Recurrence.Next(now, false)
		s.push(&event{ProgrammeIndex: i, FireTime: fire, Duration: p.Duration})
		metrics.EventsScheduledTotal.WithLabelValues(p.Station, p.Name).Inc()
	}
}

func (s *Scheduler) push(e *event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.queue, e)
}

// peek returns the earliest queued event without removing it. It takes the
// queue lock because the admin API reads the queue concurrently through
// Snapshot and Len; the lock is never held across the sleep that follows.
func (s *Scheduler) peek() (*event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	return s.queue[0], true
}

func (s *Scheduler) pop() *event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return heap.Pop(&s.queue).(*event)
}

// Run executes the scheduler loop: peek the earliest event, sleep until its
// fire time, fire it, then push its next occurrence. Returns when done is
// closed or the queue empties (which never happens in normal operation,
// since every fire re-pushes its programme).
func (s *Scheduler) Run(done <-chan struct{}) {
	for {
		next, ok := s.peek()
		if !ok {
			return
		}

		select {
		case <-done:
			return
		case <-s.clock.After(next.FireTime):
		}

		e := s.pop()
		s.fire(e)
		if s.onFire != nil {
			s.onFire(e)
		}
	}
}

func (s *Scheduler) fire(e *event) {
	p := s.programmes[e.ProgrammeIndex]

	dir := filepath.Join(s.destinationPath, fmt.Sprintf("%s-%s", p.Station, p.Name))
	name := fmt.Sprintf("%s-%s-%s.mp3", p.Station, p.Name, e.FireTime.Format(fireTimeLayout))

	sk, err := s.files.OpenAppend(dir, name)
	if err != nil {
		slog.Error("failed to open recording file", "station", p.Station, "programme", p.Name, "error", err)
	} else {
		sk.ValidUntil = e.FireTime.Add(e.Duration)
		sk.Name = fmt.Sprintf("%s-%s", p.Station, p.Name)

		if reg, ok := s.registries.Registry(p.Station); ok {
			reg.Attach(&sk)
			metrics.SinkActive.WithLabelValues(p.Station).Set(float64(reg.Len()))
		} else {
			slog.Warn("no registry for station, closing orphaned sink", "station", p.Station)
			sk.Output.Close()
		}

		s.publisher.Publish(notify.Event{Station: p.Station, Kind: notify.KindSinkAttached, Detail: name})
	}

	next := p.Recurrence.Next(e.FireTime, true)
	s.push(&event{ProgrammeIndex: e.ProgrammeIndex, FireTime: next, Duration: p.Duration})
	metrics.EventsScheduledTotal.WithLabelValues(p.Station, p.Name).Inc()
}

// Len reports the number of events currently queued, for diagnostics.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// ProgrammeStatus is a point-in-time view of one programme's next
// occurrence, used by the admin status endpoint.
type ProgrammeStatus struct {
	Station      string    `json:"station"`
	Programme    string    `json:"programme"`
	NextFireTime time.Time `json:"nextFireTime"`
}

// Snapshot returns each programme's next scheduled occurrence, sorted by
// fire time.
func (s *Scheduler) Snapshot() []ProgrammeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProgrammeStatus, 0, len(s.queue))
	for _, e := range s.queue {
		p := s.programmes[e.ProgrammeIndex]
		out = append(out, ProgrammeStatus{Station: p.Station, Programme: p.Name, NextFireTime: e.FireTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextFireTime.Before(out[j].NextFireTime) })
	return out
}
