package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/stationkeeper/internal/notify"
)

func TestSetStationsAreSorted(t *testing.T) {
	s := NewSet([]string{"zulu", "alpha", "mike"})
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, s.Stations())
}

func TestSetRegistryLooksUpByName(t *testing.T) {
	s := NewSet([]string{"radio1"})

	_, ok := s.Registry("missing")
	assert.False(t, ok)

	reg, ok := s.Registry("radio1")
	require.True(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestSetPublisherReachesEveryRegistry(t *testing.T) {
	s := NewSet([]string{"radio1", "radio2"})
	pub := &recordingPublisher{}
	s.SetPublisher(pub)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg, _ := s.Registry("radio1")
	reg.Attach(&Sink{Name: "expired", ValidUntil: now.Add(-time.Second), Output: &fakeOutput{}})
	reg.Broadcast([]byte("x"), now)

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.KindSinkEvicted, pub.events[0].Kind)
}
