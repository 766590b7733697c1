// Package api exposes the grid engine's decision core over HTTP: the tick
// endpoint the broker adapter drives at market pace, the operator-facing
// control and settings endpoints, and the observability surface
// (ui-data, ui-stream, metrics, health).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"elasticgrid/kernel"
	"elasticgrid/logger"
)

// Server is the HTTP API server fronting a kernel.Engine.
type Server struct {
	router     *gin.Engine
	engine     *kernel.Engine
	httpServer *http.Server
	port       int
	hub        *wsHub
	metrics    *Metrics
}

// NewServer builds the gin router and registers every route.
func NewServer(engine *kernel.Engine, port int, jwtSecret string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		router:  router,
		engine:  engine,
		port:    port,
		hub:     newWSHub(),
		metrics: NewMetrics(),
	}

	guard := newAuthGuard(jwtSecret)
	s.setupRoutes(guard)
	go s.hub.run()

	return s
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes(guard *authGuard) {
	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/health", s.handleHealth)
		apiGroup.POST("/tick", s.handleTick)
		apiGroup.GET("/ui-data", s.handleUIData)
		apiGroup.GET("/ui-stream", s.handleUIStream)

		protected := apiGroup.Group("/", guard.middleware())
		{
			protected.POST("control", s.handleControl)
			protected.POST("update-settings", s.handleUpdateSettings)
		}
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
}

// Start runs the HTTP server until it errors or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Infof("api: server starting at http://localhost%s", addr)
	logger.Infof("api: POST /api/tick            - broker tick ingestion (unauthenticated)")
	logger.Infof("api: POST /api/control          - operator control commands (bearer token)")
	logger.Infof("api: POST /api/update-settings  - grid settings update (bearer token)")
	logger.Infof("api: GET  /api/ui-data          - polling UI snapshot")
	logger.Infof("api: GET  /api/ui-stream        - websocket UI stream")
	logger.Infof("api: GET  /api/health           - health check")
	logger.Infof("api: GET  /metrics              - prometheus exposition")

	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
