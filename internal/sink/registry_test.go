package sink

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/stationkeeper/internal/notify"
)

type recordingPublisher struct {
	events []notify.Event
}

func (p *recordingPublisher) Publish(e notify.Event) {
	p.events = append(p.events, e)
}

type fakeOutput struct {
	buf      bytes.Buffer
	closed   bool
	writeErr error
}

func (f *fakeOutput) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.buf.Write(p)
}

func (f *fakeOutput) Close() error {
	f.closed = true
	return nil
}

func TestBroadcastWritesToAllLiveSinks(t *testing.T) {
	r := New("test-station")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := &fakeOutput{}
	b := &fakeOutput{}
	r.Attach(&Sink{Name: "a", ValidUntil: now.Add(time.Minute), Output: a})
	r.Attach(&Sink{Name: "b", ValidUntil: now.Add(time.Minute), Output: b})

	r.Broadcast([]byte("chunk"), now)

	assert.Equal(t, "chunk", a.buf.String())
	assert.Equal(t, "chunk", b.buf.String())
	require.Equal(t, 2, r.Len())
}

func TestBroadcastEvictsExpiredSinks(t *testing.T) {
	r := New("test-station")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	expired := &fakeOutput{}
	live := &fakeOutput{}
	r.Attach(&Sink{Name: "expired", ValidUntil: now.Add(-time.Second), Output: expired})
	r.Attach(&Sink{Name: "live", ValidUntil: now.Add(time.Minute), Output: live})

	r.Broadcast([]byte("x"), now)

	assert.True(t, expired.closed)
	assert.Empty(t, expired.buf.String())
	assert.Equal(t, "x", live.buf.String())
	assert.Equal(t, 1, r.Len())
}

func TestBroadcastIsolatesWriteErrors(t *testing.T) {
	r := New("test-station")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	broken := &fakeOutput{writeErr: errors.New("disk full")}
	ok := &fakeOutput{}
	r.Attach(&Sink{Name: "broken", ValidUntil: now.Add(time.Minute), Output: broken})
	r.Attach(&Sink{Name: "ok", ValidUntil: now.Add(time.Minute), Output: ok})

	r.Broadcast([]byte("x"), now)

	assert.True(t, broken.closed)
	assert.Equal(t, "x", ok.buf.String())
	assert.Equal(t, 1, r.Len())
}

func TestBroadcastPublishesEvictionEvent(t *testing.T) {
	r := New("test-station")
	pub := &recordingPublisher{}
	r.SetPublisher(pub)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	r.Attach(&Sink{Name: "expired", ValidUntil: now.Add(-time.Second), Output: &fakeOutput{}})
	r.Broadcast([]byte("x"), now)

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.KindSinkEvicted, pub.events[0].Kind)
	assert.Equal(t, "expired", pub.events[0].Detail)
}

func TestSnapshotReflectsAttached(t *testing.T) {
	r := New("test-station")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Attach(&Sink{Name: "only", ValidUntil: now.Add(time.Hour), Output: &fakeOutput{}})

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "only", snap[0].Name)
}
