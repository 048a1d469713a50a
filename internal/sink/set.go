package sink

import (
	"sort"

	"github.com/arung-agamani/stationkeeper/internal/notify"
)

// Set is the running collection of per-station registries, shared between
// the scheduler (which attaches sinks) and the admin API (which reports on
// them).
type Set struct {
	registries map[string]*Registry
}

// NewSet builds a Set with one Registry per station name.
func NewSet(stations []string) *Set {
	s := &Set{registries: make(map[string]*Registry, len(stations))}
	for _, name := range stations {
		s.registries[name] = New(name)
	}
	return s
}

func (s *Set) Registry(station string) (*Registry, bool) {
	r, ok := s.registries[station]
	return r, ok
}

// SetPublisher wires p into every registry's eviction-event publisher.
func (s *Set) SetPublisher(p notify.Publisher) {
	for _, r := range s.registries {
		r.SetPublisher(p)
	}
}

// Stations returns station names in sorted order for stable status output.
func (s *Set) Stations() []string {
	names := make([]string, 0, len(s.registries))
	for name := range s.registries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
