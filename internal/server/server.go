package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubev2v/workmanager/internal/config"
	"github.com/kubev2v/workmanager/internal/server/middlewares"
)

const apiPrefix = "/api/v1"

type Server struct {
	srv     *http.Server
	engine  *gin.Engine
	metrics http.Handler
	health  func() error
}

type ServerOption func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHealthCheck makes /health answer 503 while check returns an error.
func WithHealthCheck(check func() error) ServerOption {
	return func(s *Server) {
		s.health = check
	}
}

func NewServer(cfg *config.Configuration, registerHandlerFn func(router *gin.RouterGroup), opts ...ServerOption) (*Server, error) {
	switch cfg.Server.ServerMode {
	case "prod":
		gin.SetMode(gin.ReleaseMode)
	case "dev":
		gin.SetMode(gin.DebugMode)
	default:
		return nil, fmt.Errorf("unknown server mode %q", cfg.Server.ServerMode)
	}

	s := &Server{
		engine: gin.New(),
	}
	for _, o := range opts {
		o(s)
	}

	s.engine.Use(
		middlewares.Logger(),
		ginzap.RecoveryWithZap(zap.L().Named("http"), true),
	)

	s.engine.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	registerHandlerFn(s.engine.Group(apiPrefix))

	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, apiPrefix) {
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: s.engine,
	}

	return s, nil
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start(ctx context.Context) error {
	zap.S().Named("server").Infow("starting server", "address", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop waits for in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	zap.S().Named("server").Info("stopping server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
