// Package config loads and validates the recorder's TOML configuration
// file, resolving every programme's recurrence string into a predicate
// before the scheduler ever sees it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/midbel/toml"

	"github.com/arung-agamani/stationkeeper/internal/clierr"
	"github.com/arung-agamani/stationkeeper/internal/recurrence"
	"github.com/arung-agamani/stationkeeper/internal/scheduler"
	"github.com/arung-agamani/stationkeeper/internal/station"
)

// raw mirrors the TOML file shape exactly; Load resolves it into Config.
type raw struct {
	DestinationPath string `toml:"destinationPath"`
	TimeoutDirect   int    `toml:"timeoutDirect"`
	TimeoutPlaylist int    `toml:"timeoutPlaylist"`

	AdminAddr     string `toml:"adminAddr"`
	AdminToken    string `toml:"adminToken"`
	MQTTBrokerURL string `toml:"mqttBrokerURL"`
	LogLevel      string `toml:"logLevel"`

	Schedule []rawStation `toml:"schedule"`
}

type rawStation struct {
	Identifier string          `toml:"identifier"`
	Strategy   string          `toml:"strategy"`
	URL        string          `toml:"url"`
	Programmes []rawProgramme `toml:"programmes"`
}

type rawProgramme struct {
	Identifier      string `toml:"identifier"`
	Recurrence      string `toml:"recurrence"`
	DurationMinutes int    `toml:"durationMinutes"`
}

// Config is the fully resolved, ready-to-run configuration.
type Config struct {
	DestinationPath string
	TimeoutDirect   time.Duration
	TimeoutPlaylist time.Duration

	AdminAddr     string
	AdminToken    string
	MQTTBrokerURL string
	LogLevel      string

	Stations   []station.Config
	Programmes []scheduler.Programme
}

// Load decodes, validates, and resolves the configuration file at path.
// Every error returned is a *clierr.Error carrying the process exit code
// appropriate to its kind.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, clierr.ConfigIO(err)
	}
	f.Close()

	var r raw
	if err := toml.DecodeFile(path, &r); err != nil {
		return nil, clierr.ConfigParse(err)
	}

	if r.DestinationPath == "" {
		return nil, clierr.ConfigParse(fmt.Errorf("destinationPath is required"))
	}
	if r.TimeoutDirect <= 0 {
		return nil, clierr.ConfigParse(fmt.Errorf("timeoutDirect must be a positive number of seconds"))
	}
	if r.TimeoutPlaylist <= 0 {
		return nil, clierr.ConfigParse(fmt.Errorf("timeoutPlaylist must be a positive number of seconds"))
	}

	cfg := &Config{
		DestinationPath: r.DestinationPath,
		TimeoutDirect:   time.Duration(r.TimeoutDirect) * time.Second,
		TimeoutPlaylist: time.Duration(r.TimeoutPlaylist) * time.Second,
		AdminAddr:       r.AdminAddr,
		AdminToken:      r.AdminToken,
		MQTTBrokerURL:   r.MQTTBrokerURL,
		LogLevel:        r.LogLevel,
	}

	for _, rs := range r.Schedule {
		strategy, err := parseStrategy(rs.Strategy)
		if err != nil {
			return nil, clierr.ConfigParse(fmt.Errorf("station %q: %w", rs.Identifier, err))
		}

		cfg.Stations = append(cfg.Stations, station.Config{
			Name:            rs.Identifier,
			SourceURL:       rs.URL,
			Strategy:        strategy,
			TimeoutDirect:   cfg.TimeoutDirect,
			TimeoutPlaylist: cfg.TimeoutPlaylist,
		})

		for _, rp := range rs.Programmes {
			pred, err := recurrence.Parse(rp.Recurrence)
			if err != nil {
				if errors.Is(err, recurrence.ErrConstantRange) {
					return nil, clierr.ConstantRange(rs.Identifier, rp.Identifier, err)
				}
				return nil, clierr.RecurrenceParse(rs.Identifier, rp.Identifier, err)
			}
			if rp.DurationMinutes <= 0 {
				return nil, clierr.ConfigParse(fmt.Errorf("station %q programme %q: durationMinutes must be positive", rs.Identifier, rp.Identifier))
			}

			cfg.Programmes = append(cfg.Programmes, scheduler.Programme{
				Station:    rs.Identifier,
				Name:       rp.Identifier,
				Recurrence: pred,
				Duration:   time.Duration(rp.DurationMinutes) * time.Minute,
			})
		}
	}

	return cfg, nil
}

func parseStrategy(s string) (station.Strategy, error) {
	switch s {
	case "direct":
		return station.Direct, nil
	case "m3u":
		return station.Playlist, nil
	default:
		return "", fmt.Errorf("unknown strategy %q, want %q or %q", s, "direct", "m3u")
	}
}
