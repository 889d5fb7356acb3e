// Package server provides the HTTP server of the workd daemon.
//
// The server uses the Gin web framework. It serves the work API under /api/v1,
// a health probe and, when a handler is given, Prometheus metrics.
//
// # Architecture Overview
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                       HTTP Server :8000                       │
//	├───────────────────────────────────────────────────────────────┤
//	│                       Middleware Stack                        │
//	│  ┌─────────────────────────────────────────────────────────┐  │
//	│  │  Logger (request/response logging)                      │  │
//	│  │  Recovery (panic recovery with zap logging)             │  │
//	│  └─────────────────────────────────────────────────────────┘  │
//	├───────────────────────────────────────────────────────────────┤
//	│  /health        engine liveness (WithHealthCheck)             │
//	│  /metrics       Prometheus exposition (WithMetricsHandler)    │
//	│  /api/v1/*      handlers registered via callback              │
//	└───────────────────────────────────────────────────────────────┘
//
// # Server Modes
//
// Development Mode (ServerMode = "dev"): Gin runs in debug mode.
//
// Production Mode (ServerMode = "prod"): Gin runs in release mode.
//
// # Server Lifecycle
//
//	srv, err := server.NewServer(cfg, func(router *gin.RouterGroup) {
//	    v1.RegisterHandlers(router, handler)
//	}, server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
//
//	go func() {
//	    if err := srv.Start(ctx); err != nil {
//	        zap.S().Errorw("server error", "error", err)
//	    }
//	}()
//
//	<-ctx.Done()
//	srv.Stop(shutdownCtx)
//
// Start returns nil after a graceful Stop. Stop waits for in-flight requests.
//
// # Middleware
//
// Logger Middleware (middlewares.Logger):
//   - Logs request start: method, path, query, IP, user-agent, timestamp
//   - Logs request end: all above + status code, latency
//   - Errors logged separately if present
//   - Uses zap structured logging with "http" logger name
//
// Recovery Middleware (ginzap.RecoveryWithZap):
//   - Recovers from panics in handlers
//   - Logs panic details with stack trace
//   - Returns 500 Internal Server Error
//
// Unknown /api routes answer a JSON 404.
package server
