package station

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/stationkeeper/internal/sink"
)

// chunkFetcher is a synthetic Fetcher: it feeds a fixed sequence of chunks
// to consume, then either blocks until ctx is cancelled or returns an error,
// letting tests drive the worker without real network traffic.
type chunkFetcher struct {
	chunks   [][]byte
	endErr   error
	fetched  chan struct{}
	blockCtx bool
}

func (f *chunkFetcher) Fetch(ctx context.Context, url string, consume func([]byte) bool) error {
	for _, c := range f.chunks {
		if !consume(c) {
			return nil
		}
	}
	if f.fetched != nil {
		select {
		case f.fetched <- struct{}{}:
		default:
		}
	}
	if f.blockCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.endErr
}

type bufOutput struct {
	bytes.Buffer
}

func (b *bufOutput) Close() error { return nil }

func TestWorkerBroadcastsChunksToSinks(t *testing.T) {
	reg := sink.New("radio1")
	out := &bufOutput{}
	reg.Attach(&sink.Sink{Name: "s1", ValidUntil: time.Now().Add(time.Hour), Output: out})

	fetcher := &chunkFetcher{chunks: [][]byte{[]byte("abc"), []byte("def")}, endErr: io.EOF}
	w := New(Config{Name: "radio1", Strategy: Direct, TimeoutDirect: time.Second}, reg, fetcher, nil)

	shutdown := make(chan struct{})
	w.downloadDirect(shutdown, "http://example/stream")

	assert.Equal(t, "abcdef", out.String())
}

func TestWorkerFetchPlaylistParsesURLs(t *testing.T) {
	fetcher := &chunkFetcher{
		chunks: [][]byte{[]byte("# comment\n\nhttp://example/a.mp3\r\nhttp://example/b.mp3\n")},
		endErr: io.EOF,
	}
	w := New(Config{Name: "radio1", Strategy: Playlist, TimeoutPlaylist: time.Second}, sink.New("radio1"), fetcher, nil)

	urls, err := w.fetchPlaylist()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example/a.mp3", "http://example/b.mp3"}, urls)
}

func TestParseM3UTrimsAndSkipsCommentsAndBlanks(t *testing.T) {
	body := "  http://a \r\n# skip\r\n\r\n\thttp://b\t\n"
	urls := parseM3U(body)
	assert.Equal(t, []string{"http://a", "http://b"}, urls)
}

func TestParseM3UEmptyYieldsNoURLs(t *testing.T) {
	assert.Empty(t, parseM3U("# only comments\n\n   \n"))
}

func TestWorkerStatusReflectsConnectionState(t *testing.T) {
	reg := sink.New("radio1")
	fetcher := &chunkFetcher{chunks: [][]byte{[]byte("abc")}, endErr: io.EOF}
	w := New(Config{Name: "radio1", Strategy: Direct, TimeoutDirect: time.Second}, reg, fetcher, nil)

	before := w.Status()
	assert.False(t, before.Connected)

	w.downloadDirect(make(chan struct{}), "http://example/stream")

	after := w.Status()
	assert.False(t, after.Connected, "connected flips back to false once the stream ends")
	assert.Equal(t, int64(3), after.BytesRelayed)
}

func TestSetStatusLooksUpByName(t *testing.T) {
	reg := sink.New("radio1")
	w := New(Config{Name: "radio1", Strategy: Direct, TimeoutDirect: time.Second}, reg, &chunkFetcher{endErr: io.EOF}, nil)
	set := NewSet(map[string]*Worker{"radio1": w})

	_, ok := set.Status("missing")
	assert.False(t, ok)

	st, ok := set.Status("radio1")
	require.True(t, ok)
	assert.False(t, st.Connected)
}
