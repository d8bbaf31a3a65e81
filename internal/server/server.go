package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jlucaspains/roadmapboard/internal/aggregate"
	"github.com/jlucaspains/roadmapboard/internal/board"
	"github.com/jlucaspains/roadmapboard/internal/config"
	"github.com/jlucaspains/roadmapboard/internal/render"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server exposes the JSON proxy API and the HTML dashboard
type Server struct {
	config   *config.Config
	service  *aggregate.Service
	boards   *board.Registry
	renderer *render.Renderer
	router   *gin.Engine
	logger   *slog.Logger
}

func New(cfg *config.Config, service *aggregate.Service, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	renderer, err := render.NewRenderer(cfg.Tracker.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	corsConfig := newCORSConfig(cfg.Server.AllowedOrigins)
	if err := corsConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server.allowed_origins: %w", err)
	}

	cmp := board.NewVersionComparator(cfg.Dashboard.Locale)
	shared := board.NewSharedSource(service, cfg.Dashboard.CacheTTL)
	boards := board.NewRegistry(cfg.Dashboard.SessionTTL, cfg.Dashboard.MaxSessions, func() *board.Board {
		return board.NewBoard(shared, &cfg.Dashboard, cmp, logger)
	})

	s := &Server{
		config:   cfg,
		service:  service,
		boards:   boards,
		renderer: renderer,
		logger:   logger,
	}
	s.router = s.initRoutes(corsConfig)

	return s, nil
}

func newCORSConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", RequestIDHeader}
	config.ExposeHeaders = []string{RequestIDHeader}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return config
}

func (s *Server) initRoutes(corsConfig cors.Config) *gin.Engine {
	router := gin.New()

	router.Use(requestID())
	router.Use(requestLogger(s.logger))
	router.Use(recovery(s.logger))
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, render.BoardPath)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/redmine")
	{
		api.GET("/projects", s.listProjects)
		api.GET("/projects/:identifier/subprojects", s.subprojects)
		api.GET("/projects/:identifier/all-versions", s.allVersions)
		api.GET("/projects/:identifier/roadmap", s.roadmap)
		api.GET("/projects/:identifier/versions/:versionId/issues", s.versionIssues)
		api.GET("/issues", s.listIssues)
	}

	dashboard := router.Group(render.BoardPath)
	{
		dashboard.GET("", s.showBoard)
		dashboard.POST("/reload", s.reloadBoard)
		dashboard.POST("/versions/:id/toggle", s.toggleVersion)
		dashboard.POST("/versions/:id/expand", s.expandVersion)
	}

	return router
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", srv.Addr, "tracker", s.config.Tracker.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	s.logger.Info("Server stopped gracefully")
	return nil
}
