package scheduler

import (
	"os"
	"path/filepath"

	"github.com/arung-agamani/stationkeeper/internal/sink"
)

// OSFiles is the production FileOpener: it creates the destination
// directory if needed and opens the file in append mode, matching the
// output-layout contract (re-running with overlapping schedules concatenates
// into existing files).
type OSFiles struct{}

func (OSFiles) OpenAppend(dir, name string) (sink.Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sink.Sink{}, err
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return sink.Sink{}, err
	}
	return sink.Sink{Output: f}, nil
}
