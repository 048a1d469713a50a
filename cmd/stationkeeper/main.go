// Command stationkeeper records scheduled programmes off internet radio
// streams to disk according to a TOML schedule, optionally exposing an
// admin HTTP API and publishing lifecycle events to MQTT.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/arung-agamani/stationkeeper/internal/admin"
	"github.com/arung-agamani/stationkeeper/internal/clierr"
	"github.com/arung-agamani/stationkeeper/internal/clock"
	"github.com/arung-agamani/stationkeeper/internal/config"
	"github.com/arung-agamani/stationkeeper/internal/notify"
	"github.com/arung-agamani/stationkeeper/internal/scheduler"
	"github.com/arung-agamani/stationkeeper/internal/sink"
	"github.com/arung-agamani/stationkeeper/internal/station"
)

var errUsage = errors.New("usage: stationkeeper <config.toml>")

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		clierr.Exit(clierr.ConfigIO(errUsage))
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		clierr.Exit(err)
	}
	setLogLevel(cfg.LogLevel)

	stationNames := make([]string, 0, len(cfg.Stations))
	for _, st := range cfg.Stations {
		stationNames = append(stationNames, st.Name)
	}
	registries := sink.NewSet(stationNames)

	var publishers notify.Multi
	if cfg.MQTTBrokerURL != "" {
		hostname, _ := os.Hostname()
		mqttPub, err := notify.DialMQTT(cfg.MQTTBrokerURL, "stationkeeper-"+hostname)
		if err != nil {
			slog.Error("mqtt dial failed, continuing without it", "error", err)
		} else {
			defer mqttPub.Close()
			publishers = append(publishers, mqttPub)
		}
	}

	var adminSrv *admin.Server
	if cfg.AdminAddr != "" {
		adminSrv = admin.New(admin.Config{Addr: cfg.AdminAddr, Token: cfg.AdminToken}, registries, nil)
		publishers = append(publishers, adminSrv.Publisher())
	}

	var publisher notify.Publisher = notify.Nop{}
	if len(publishers) > 0 {
		publisher = publishers
	}
	registries.SetPublisher(publisher)

	sched := scheduler.New(cfg.DestinationPath, cfg.Programmes, clock.Real{}, scheduler.OSFiles{}, registries, publisher)

	workers := make(map[string]*station.Worker, len(cfg.Stations))
	for _, st := range cfg.Stations {
		reg, _ := registries.Registry(st.Name)
		workers[st.Name] = station.New(st, reg, station.HTTPFetcher{}, publisher)
	}
	workerSet := station.NewSet(workers)

	if adminSrv != nil {
		adminSrv.SetSchedule(sched)
		adminSrv.SetWorkers(workerSet)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	var wg sync.WaitGroup

	for _, worker := range workers {
		worker := worker
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx.Done())
		}()
	}

	sched.Seed()
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx.Done())
	}()

	if adminSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := adminSrv.Run(ctx); err != nil {
				slog.Error("admin api stopped", "error", err)
			}
		}()
	}

	slog.Info("stationkeeper started", "stations", len(cfg.Stations), "programmes", len(cfg.Programmes))
	<-ctx.Done()
	wg.Wait()
	slog.Info("stationkeeper stopped")
}

func setLogLevel(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}
