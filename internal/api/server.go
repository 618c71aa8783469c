/**
 * @description
 * Package api exposes the sign/verify core over HTTP, modeled on
 * backend/internal/api/server.go's Gin engine, route grouping, and
 * middleware layout.
 *
 * Key features:
 * - Gin Engine: routes, recovery middleware and request logging follow
 *   the teacher's backend/internal/api/server.go construction pattern.
 * - Optional Audit Stream: the /v1/audit/ws route is only registered
 *   when a non-nil Hub is wired in, so the WebSocket surface is opt-in.
 *
 * @dependencies
 * - github.com/gin-gonic/gin: HTTP routing and middleware.
 */
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poly-pro/shaken/internal/audit"
	"github.com/poly-pro/shaken/internal/core"
)

// Server wires the sign/verify core and the audit hub onto a Gin engine.
type Server struct {
	engine *gin.Engine
	core   *core.Core
	hub    *audit.Hub
	logger *slog.Logger
}

/**
 * @description
 * New builds a Server. The *gin.Engine returned by its Engine method
 * is ready to serve.
 *
 * @param c The sign/verify core to expose.
 * @param hub The audit hub to expose at /v1/audit/ws, or nil to omit it.
 * @param logger A structured logger for request logging.
 * @returns A *Server with its routes already registered.
 */
func New(c *core.Core, hub *audit.Hub, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, core: c, hub: hub, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(s.requestLogger())
	s.engine.Use(corsMiddleware())

	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/v1")
	v1.POST("/sign", s.handleSign)
	v1.POST("/verify", s.handleVerify)
	if s.hub != nil {
		v1.GET("/audit/ws", s.handleAuditWS)
	}
}

// Engine exposes the underlying *gin.Engine for http.Server wiring.
func (s *Server) Engine() *gin.Engine { return s.engine }

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
