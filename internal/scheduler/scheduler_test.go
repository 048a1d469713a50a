package scheduler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/stationkeeper/internal/clock"
	"github.com/arung-agamani/stationkeeper/internal/recurrence"
	"github.com/arung-agamani/stationkeeper/internal/sink"
)

type memFile struct {
	bytes.Buffer
}

func (m *memFile) Close() error { return nil }

type memFiles struct {
	opened []string
}

func (f *memFiles) OpenAppend(dir, name string) (sink.Sink, error) {
	f.opened = append(f.opened, dir+"/"+name)
	return sink.Sink{Output: &memFile{}}, nil
}

type memRegistries struct {
	registries map[string]*sink.Registry
}

func newMemRegistries(stations ...string) *memRegistries {
	m := &memRegistries{registries: make(map[string]*sink.Registry)}
	for _, s := range stations {
		m.registries[s] = sink.New(s)
	}
	return m
}

func (m *memRegistries) Registry(station string) (*sink.Registry, bool) {
	r, ok := m.registries[station]
	return r, ok
}

func mustPredicate(t *testing.T, expr string) recurrence.Predicate {
	t.Helper()
	p, err := recurrence.Parse(expr)
	require.NoError(t, err)
	return p
}

// waitFire blocks until the scheduler fires its next event, driving the fake
// clock forward to the queue's head each time nothing has fired yet.
func waitFire(t *testing.T, s *Scheduler, c *clock.Fake) *event {
	t.Helper()

	fired := make(chan *event, 1)
	s.onFire = func(e *event) { fired <- e }

	done := make(chan struct{})
	defer close(done)

	nextFire := s.Snapshot()[0].NextFireTime
	go s.Run(done)

	c.Advance(nextFire)

	select {
	case e := <-fired:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduler to fire")
		return nil
	}
}

func TestSchedulerAttachesSinkAtFireTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(base)
	files := &memFiles{}
	registries := newMemRegistries("radio1")

	programmes := []Programme{
		{Station: "radio1", Name: "morning", Recurrence: mustPredicate(t, "1M"), Duration: 5 * time.Minute},
	}

	s := New("/recordings", programmes, c, files, registries, nil)
	s.Seed()
	require.Equal(t, 1, s.Len())

	waitFire(t, s, c)

	reg, _ := registries.Registry("radio1")
	assert.Equal(t, 1, reg.Len())
	require.Len(t, files.opened, 1)
	assert.Contains(t, files.opened[0], "radio1-morning")
}

func TestSchedulerRepushesStrictlyLaterAfterFiring(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(base)
	files := &memFiles{}
	registries := newMemRegistries("radio1")

	programmes := []Programme{
		{Station: "radio1", Name: "hourly", Recurrence: mustPredicate(t, "0M"), Duration: time.Minute},
	}

	s := New("/recordings", programmes, c, files, registries, nil)
	s.Seed()
	firstFire := s.Snapshot()[0].NextFireTime

	waitFire(t, s, c)

	require.Equal(t, 1, s.Len())
	next := s.Snapshot()[0]
	assert.True(t, next.NextFireTime.After(firstFire), "re-pushed event must fire strictly later")
}

func TestSnapshotIsSortedByFireTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(base)
	files := &memFiles{}
	registries := newMemRegistries("radio1", "radio2")

	programmes := []Programme{
		{Station: "radio1", Name: "late", Recurrence: mustPredicate(t, "45M"), Duration: time.Minute},
		{Station: "radio2", Name: "early", Recurrence: mustPredicate(t, "15M"), Duration: time.Minute},
	}

	s := New("/recordings", programmes, c, files, registries, nil)
	s.Seed()

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "radio2", snap[0].Station)
	assert.Equal(t, "early", snap[0].Programme)
	assert.True(t, snap[0].NextFireTime.Before(snap[1].NextFireTime))
}

func TestSchedulerNeverFiresBeforeFireTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(base)
	files := &memFiles{}
	registries := newMemRegistries("radio1")

	programmes := []Programme{
		{Station: "radio1", Name: "p", Recurrence: mustPredicate(t, "30M"), Duration: time.Minute},
	}

	s := New("/recordings", programmes, c, files, registries, nil)
	s.Seed()
	fireTime := s.Snapshot()[0].NextFireTime

	fired := make(chan *event, 1)
	s.onFire = func(e *event) { fired <- e }
	done := make(chan struct{})
	defer close(done)
	go s.Run(done)

	c.Advance(fireTime.Add(-time.Second))
	select {
	case <-fired:
		t.Fatal("scheduler fired before fire time")
	case <-time.After(50 * time.Millisecond):
	}

	c.Advance(fireTime)
	select {
	case e := <-fired:
		assert.False(t, e.FireTime.After(fireTime))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduler to fire at fire time")
	}
}
