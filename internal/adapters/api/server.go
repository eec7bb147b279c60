package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/core"
)

// Server exposes the insights engine over HTTP: current alerts,
// dismissal, risk level, the metrics snapshot and a WebSocket stream.
// It is a thin transport; all rules live in the engine.
type Server struct {
	engine *core.Engine
	logger *zap.Logger
	srv    *http.Server
}

// NewServer creates an HTTP server around the engine
func NewServer(engine *core.Engine, listenAddr string, logger *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1/users/:userID")
	v1.GET("/alerts", s.getAlerts)
	v1.POST("/alerts/:alertID/dismiss", s.dismissAlert)
	v1.GET("/alerts/stream", s.streamAlerts)
	v1.GET("/risk", s.getRiskLevel)
	v1.GET("/insights", s.getInsights)

	s.srv = &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}
	return s
}

// Router returns the underlying handler, used by tests
func (s *Server) Router() http.Handler {
	return s.srv.Handler
}

// Start begins serving in a background goroutine
func (s *Server) Start() error {
	go func() {
		s.logger.Info("HTTP server listening", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// getAlerts returns the current alert list, starting the session on
// first contact
func (s *Server) getAlerts(c *gin.Context) {
	userID := c.Param("userID")
	s.engine.StartSession(userID)

	alerts := s.engine.CurrentAlerts(userID)
	if alerts == nil {
		alerts = []core.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// dismissAlert suppresses a dismissible alert. Always 204: unknown and
// non-dismissible ids are idempotent no-ops, never errors.
func (s *Server) dismissAlert(c *gin.Context) {
	userID := c.Param("userID")
	alertID := c.Param("alertID")

	s.engine.DismissAlert(c.Request.Context(), userID, alertID)
	c.Status(http.StatusNoContent)
}

// getRiskLevel returns the live risk level, or null while no snapshot
// has been computed yet
func (s *Server) getRiskLevel(c *gin.Context) {
	userID := c.Param("userID")
	s.engine.StartSession(userID)

	level, ok := s.engine.CurrentRiskLevel(userID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"riskLevel": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"riskLevel": level})
}

// getInsights returns the full metrics snapshot
func (s *Server) getInsights(c *gin.Context) {
	userID := c.Param("userID")
	s.engine.StartSession(userID)

	snapshot := s.engine.CurrentSnapshot(userID)
	if snapshot == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "computing"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
