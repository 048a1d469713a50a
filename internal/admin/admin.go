// Package admin exposes an HTTP API for operational visibility into a
// running recorder: liveness, a snapshot of stations/sinks/scheduled
// events, Prometheus metrics, and a websocket feed of lifecycle events.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arung-agamani/stationkeeper/internal/scheduler"
	"github.com/arung-agamani/stationkeeper/internal/sink"
	"github.com/arung-agamani/stationkeeper/internal/station"
)

// Registries exposes the running set of per-station sink registries, so
// /status can report attached sinks.
type Registries interface {
	Stations() []string
	Registry(station string) (*sink.Registry, bool)
}

// ProgrammeSnapshot reports every programme's next scheduled occurrence and
// the queue's overall depth.
type ProgrammeSnapshot interface {
	Len() int
	Snapshot() []scheduler.ProgrammeStatus
}

// WorkerStatuses reports each station worker's connection health.
type WorkerStatuses interface {
	Status(name string) (station.Status, bool)
}

type Config struct {
	Addr  string
	Token string
}

type Server struct {
	cfg        Config
	router     *gin.Engine
	httpServer *http.Server
	hub        *Hub
	upgrader   websocket.Upgrader

	registries Registries
	workers    WorkerStatuses
	schedule   ProgrammeSnapshot
}

// New builds the admin server. Pass the empty Config.Token to disable
// authentication, which is only ever appropriate on a loopback-bound Addr.
// workers and schedule may be nil if those components aren't constructed
// yet; wire them with SetWorkers/SetSchedule before Run starts serving.
func New(cfg Config, registries Registries, schedule ProgrammeSnapshot) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		cfg:        cfg,
		router:     router,
		hub:        NewHub(),
		registries: registries,
		schedule:   schedule,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	if cfg.Token != "" {
		protected.Use(newTokenAuth(cfg.Token).Middleware())
	}

	protected.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.statusSnapshot())
	})
	protected.GET("/metrics", gin.WrapH(promhttp.Handler()))
	protected.GET("/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0,
	}
	return s
}

// SetWorkers wires per-station connection health into /status. Call before Run.
func (s *Server) SetWorkers(workers WorkerStatuses) { s.workers = workers }

// SetSchedule wires the scheduler's queue into /status. Call before Run.
func (s *Server) SetSchedule(schedule ProgrammeSnapshot) { s.schedule = schedule }

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

type stationStatus struct {
	Name   string          `json:"name"`
	Health *station.Status `json:"health,omitempty"`
	Sinks  []sink.Info     `json:"sinks"`
}

type statusResponse struct {
	Stations   []stationStatus             `json:"stations"`
	Programmes []scheduler.ProgrammeStatus `json:"programmes"`
	QueueDepth int                         `json:"queueDepth"`
}

func (s *Server) statusSnapshot() statusResponse {
	var resp statusResponse
	for _, name := range s.registries.Stations() {
		reg, ok := s.registries.Registry(name)
		if !ok {
			continue
		}
		entry := stationStatus{Name: name, Sinks: reg.Snapshot()}
		if s.workers != nil {
			if st, ok := s.workers.Status(name); ok {
				entry.Health = &st
			}
		}
		resp.Stations = append(resp.Stations, entry)
	}
	if s.schedule != nil {
		resp.Programmes = s.schedule.Snapshot()
		resp.QueueDepth = s.schedule.Len()
	}
	return resp
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("admin events upgrade failed", "error", err)
		return
	}
	s.hub.serve(conn)
}

// Publisher returns the notify.Publisher that fans events out to connected
// /events clients.
func (s *Server) Publisher() *Hub { return s.hub }

// Run starts serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin api listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
