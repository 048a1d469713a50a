// Package station runs one background worker per declared station: it
// fetches the station's stream (directly, or indirected through an m3u
// playlist) and fans every received byte chunk out to the station's sink
// registry.
package station

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/arung-agamani/stationkeeper/internal/metrics"
	"github.com/arung-agamani/stationkeeper/internal/notify"
	"github.com/arung-agamani/stationkeeper/internal/sink"
)

// Strategy selects how a station's source URL is interpreted.
type Strategy string

const (
	// Direct means the URL directly yields an audio byte stream.
	Direct Strategy = "direct"
	// Playlist means the URL yields an m3u text list of direct URLs.
	Playlist Strategy = "m3u"
)

// playlistEmptyBackoff throttles refetches when a playlist yields zero
// URLs, avoiding a tight reconnect storm against a misbehaving upstream.
const playlistEmptyBackoff = time.Second

// Config describes one station to run.
type Config struct {
	Name            string
	SourceURL       string
	Strategy        Strategy
	TimeoutDirect   time.Duration
	TimeoutPlaylist time.Duration
}

// Fetcher performs the blocking HTTP GET a station worker needs. Abstracted
// so the worker can be tested by feeding synthetic chunks instead of real
// network traffic (the redesigned equivalent of the original's
// callback-driven writer).
type Fetcher interface {
	// Fetch issues GET url and streams the response body to consume. consume
	// is called once per chunk as bytes arrive; it returns false to signal
	// the caller should abort the read. (The inactivity timeout does not use
	// this; it cancels ctx instead.)
	// Fetch blocks until ctx is cancelled, the body ends, or consume returns
	// false, and returns the terminal error, if any.
	Fetch(ctx context.Context, url string, consume func([]byte) bool) error
}

// Worker runs a single station's fetch-and-broadcast loop.
type Worker struct {
	cfg       Config
	registry  *sink.Registry
	fetcher   Fetcher
	publisher notify.Publisher

	connected    atomic.Bool
	lastProgress atomic.Int64 // UnixNano of the most recently received chunk
	bytesTotal   atomic.Int64
}

// Status is a point-in-time view of a worker's connection health, read by
// the admin status endpoint from a goroutine other than the one running it.
type Status struct {
	Connected       bool          `json:"connected"`
	LastProgressAge time.Duration `json:"lastProgressAge"`
	BytesRelayed    int64         `json:"bytesRelayed"`
}

// Status reports the worker's current connection health.
func (w *Worker) Status() Status {
	last := w.lastProgress.Load()
	age := time.Duration(0)
	if last != 0 {
		age = time.Since(time.Unix(0, last))
	}
	return Status{
		Connected:       w.connected.Load(),
		LastProgressAge: age,
		BytesRelayed:    w.bytesTotal.Load(),
	}
}

// New builds a Worker for cfg, broadcasting into registry via fetcher.
func New(cfg Config, registry *sink.Registry, fetcher Fetcher, publisher notify.Publisher) *Worker {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Worker{cfg: cfg, registry: registry, fetcher: fetcher, publisher: publisher}
}

// Run runs the worker's forever loop until shutdown is closed. Per station,
// this is the single long-lived goroutine; it never returns except on
// shutdown or process exit.
func (w *Worker) Run(shutdown <-chan struct{}) {
	switch w.cfg.Strategy {
	case Playlist:
		w.runPlaylistLoop(shutdown)
	default:
		w.runDirectLoop(shutdown, w.cfg.SourceURL)
	}
}

// runDirectLoop repeatedly fetches url, reconnecting immediately on any
// network error, end-of-stream, or inactivity timeout. This is the tight
// reconnect loop described for the direct strategy.
func (w *Worker) runDirectLoop(shutdown <-chan struct{}, url string) {
	for {
		select {
		case <-shutdown:
			return
		default:
		}
		w.downloadDirect(shutdown, url)
	}
}

func (w *Worker) downloadDirect(shutdown <-chan struct{}, url string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.lastProgress.Store(time.Now().UnixNano())
	var firstPacket atomic.Bool

	inactivity := time.NewTicker(w.cfg.TimeoutDirect)
	defer inactivity.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-shutdown:
				cancel()
				return
			case <-inactivity.C:
				since := time.Since(time.Unix(0, w.lastProgress.Load()))
				if since > w.cfg.TimeoutDirect {
					slog.Error("inactivity timeout", "station", w.cfg.Name)
					metrics.ReconnectsTotal.WithLabelValues(w.cfg.Name, "inactivity_timeout").Inc()
					cancel()
					return
				}
			}
		}
	}()

	slog.Info("performing direct request", "station", w.cfg.Name, "url", url)
	err := w.fetcher.Fetch(ctx, url, func(chunk []byte) bool {
		now := time.Now()
		w.bytesTotal.Add(int64(len(chunk)))
		w.lastProgress.Store(now.UnixNano())

		if firstPacket.CompareAndSwap(false, true) {
			slog.Info("first packet received", "station", w.cfg.Name)
			w.connected.Store(true)
			w.publisher.Publish(notify.Event{Station: w.cfg.Name, Kind: notify.KindFirstPacket})
		}

		w.registry.Broadcast(chunk, now)
		metrics.BytesRelayedTotal.WithLabelValues(w.cfg.Name).Add(float64(len(chunk)))
		return true
	})
	cancel()
	<-done
	w.connected.Store(false)

	if err != nil {
		slog.Error("direct stream ended", "station", w.cfg.Name, "error", err)
		metrics.ReconnectsTotal.WithLabelValues(w.cfg.Name, "network").Inc()
		w.publisher.Publish(notify.Event{Station: w.cfg.Name, Kind: notify.KindReconnect, Detail: err.Error()})
	}
}

// runPlaylistLoop fetches the playlist, iterates its URLs with the direct
// behavior, and refetches the playlist once every URL has been exhausted.
func (w *Worker) runPlaylistLoop(shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		default:
		}

		urls, err := w.fetchPlaylist()
		if err != nil {
			slog.Error("playlist fetch failed", "station", w.cfg.Name, "error", err)
			continue
		}
		if len(urls) == 0 {
			slog.Error("no url found in playlist file", "station", w.cfg.Name)
			metrics.PlaylistEmptyTotal.WithLabelValues(w.cfg.Name).Inc()
			w.publisher.Publish(notify.Event{Station: w.cfg.Name, Kind: notify.KindPlaylistEmpty})
			select {
			case <-time.After(playlistEmptyBackoff):
			case <-shutdown:
				return
			}
			continue
		}

		for _, url := range urls {
			select {
			case <-shutdown:
				return
			default:
			}
			w.downloadDirect(shutdown, url)
		}
	}
}

func (w *Worker) fetchPlaylist() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.TimeoutPlaylist)
	defer cancel()

	var body strings.Builder
	err := w.fetcher.Fetch(ctx, w.cfg.SourceURL, func(chunk []byte) bool {
		body.Write(chunk)
		return true
	})
	if err != nil && err != io.EOF {
		return nil, err
	}

	slog.Info("playlist fetched", "station", w.cfg.Name)
	return parseM3U(body.String()), nil
}

// parseM3U extracts direct URLs from playlist text: \r is normalised to \n,
// each line is trimmed, and blank lines or lines starting with '#' are
// skipped.
func parseM3U(body string) []string {
	normalised := strings.ReplaceAll(body, "\r", "\n")

	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(normalised))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// HTTPFetcher is the production Fetcher, backed by net/http.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string, consume func([]byte) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !consume(chunk) {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
