package health

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/launchpad-hq/txflow/pkg/circuitbreaker"
	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/models"
	"github.com/launchpad-hq/txflow/pkg/orchestrator"
)

// Pinger checks that the chain connection is usable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runs exposes the orchestrator's active runs
type Runs interface {
	ActiveRuns() []models.RunSnapshot
	Get(runID string) (*orchestrator.Run, bool)
	Cancel(runID string) error
}

const (
	readyTimeout = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// Server represents a health check HTTP server
type Server struct {
	port          string
	chain         Pinger
	runs          Runs
	breaker       *circuitbreaker.CircuitBreaker
	metricsAPIKey string
	logger        logger.Logger
	upgrader      websocket.Upgrader
	echo          *echo.Echo
}

// NewServer creates a new health check server. breaker may be nil when the indexer runs without one.
func NewServer(port string, chain Pinger, runs Runs, breaker *circuitbreaker.CircuitBreaker, metricsAPIKey string, log logger.Logger) *Server {
	s := &Server{
		port:          port,
		chain:         chain,
		runs:          runs,
		breaker:       breaker,
		metricsAPIKey: metricsAPIKey,
		logger:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	e.GET("/runs", s.listRuns)
	e.GET("/runs/:id", s.getRun)
	e.GET("/runs/:id/events", s.streamRun)
	e.POST("/runs/:id/cancel", s.cancelRun)
	e.GET("/circuit", s.circuitStatus)
	e.POST("/circuit/reset", s.resetCircuit)
	// Expose Prometheus metrics with API key authentication
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), s.metricsAuth)

	s.echo = e
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting health and metrics server on port %s", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// metricsAuth checks for a valid API key
func (s *Server) metricsAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			return next(c)
		}

		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return c.String(http.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.String(http.StatusUnauthorized, "Invalid Authorization header format")
		}

		if parts[1] != s.metricsAPIKey {
			return c.String(http.StatusUnauthorized, "Invalid API key")
		}

		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// ready reports whether the chain client can reach its node
func (s *Server) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	if err := s.chain.Ping(ctx); err != nil {
		s.logger.Error("Readiness check failed: %v", err)
		return c.String(http.StatusServiceUnavailable, "Chain client not connected")
	}
	return c.String(http.StatusOK, "Ready")
}

func (s *Server) listRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, s.runs.ActiveRuns())
}

func (s *Server) getRun(c echo.Context) error {
	run, ok := s.runs.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run.Snapshot())
}

// streamRun pushes the run's snapshot over a websocket on every transition and closes once it is terminal.
// A slow client may see transitions coalesced; every snapshot carries the full history.
func (s *Server) streamRun(c echo.Context) error {
	id := c.Param("id")
	run, ok := s.runs.Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.ErrorWithRun(id, "Failed to upgrade WebSocket: %v", err)
		return nil
	}
	defer ws.Close()

	changed := make(chan struct{}, 1)
	unsubscribe := run.Subscribe(func(models.RunSnapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// the client never sends anything; reading only detects when it goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	for {
		snap := run.Snapshot()
		if len(snap.History) > sent {
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(snap); err != nil {
				s.logger.DebugWithRun(id, "Event stream write failed: %v", err)
				return nil
			}
			sent = len(snap.History)
		}
		if snap.Phase.IsTerminal() {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Phase)),
				time.Now().Add(writeTimeout))
			return nil
		}

		select {
		case <-changed:
		case <-run.Done():
		case <-gone:
			return nil
		}
	}
}

func (s *Server) cancelRun(c echo.Context) error {
	id := c.Param("id")
	err := s.runs.Cancel(id)
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
	case errors.Is(err, orchestrator.ErrRunNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrNotCancellable):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	s.logger.ErrorWithRun(id, "Cancel failed: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to cancel run"})
}

func (s *Server) circuitStatus(c echo.Context) error {
	if s.breaker == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no circuit breaker configured"})
	}
	return c.JSON(http.StatusOK, s.breaker.Snapshot())
}

// resetCircuit is the admin control for the indexer circuit breaker
func (s *Server) resetCircuit(c echo.Context) error {
	if s.breaker == nil {
		return c.String(http.StatusNotFound, "No circuit breaker configured")
	}
	s.breaker.Reset()
	s.logger.Notice("Indexer circuit breaker reset")
	return c.String(http.StatusOK, "Circuit breaker reset")
}
