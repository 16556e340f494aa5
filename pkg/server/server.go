package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"homenas/pkg/config"
	"homenas/pkg/fsroot"
	"homenas/pkg/log"
	"homenas/pkg/statscache"
	"homenas/pkg/store"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	syncTimeout       = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// StatsSource provides storage statistics for /api/stats.
type StatsSource interface {
	Stats() (*statscache.Stats, error)
}

// NASServer serves the file API over HTTP.
type NASServer struct {
	cfg     *config.Config
	root    *fsroot.Root
	store   store.Store
	stats   StatsSource
	version string
	echo    *echo.Echo
}

// NewNASServer wires the routes for storeImpl rooted at root.
func NewNASServer(cfg *config.Config, root *fsroot.Root, storeImpl store.Store, stats StatsSource, version string) *NASServer {
	s := &NASServer{
		cfg:     cfg,
		root:    root,
		store:   storeImpl,
		stats:   stats,
		version: version,
		echo:    echo.New(),
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *NASServer) Handler() http.Handler {
	return s.echo
}

func (s *NASServer) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("addr", addr).
			Str("storage_dir", s.root.Dir()).
			Str("version", s.version).
			Str("web_dir", s.cfg.WebDir).
			Bool("auth", s.cfg.Auth.Enabled).
			Msg("Starting NAS server")

		if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Shutdown()
}

func (s *NASServer) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")

	// Flush filesystem buffers so finished uploads survive a power cut
	log.Info().Msg("Executing sync command...")
	syncCtx, syncCancel := context.WithTimeout(context.Background(), syncTimeout)
	defer syncCancel()

	cmd := exec.CommandContext(syncCtx, "sync")
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Msg("Sync command failed")
	} else {
		log.Info().Msg("Filesystem buffers flushed successfully")
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

func (s *NASServer) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleHTTPError

	s.echo.Use(middleware.RequestIDWithConfig(requestIDConfig()))
	s.echo.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig()))
	s.echo.Use(middleware.Recover())
	s.echo.Use(processTime)
	s.echo.Use(middleware.CORSWithConfig(corsConfig(s.cfg.CORSOrigins)))

	// Compressing file bodies would break Content-Length and byte ranges, so gzip
	// is limited to the JSON listing routes.
	gzip := middleware.GzipWithConfig(middleware.GzipConfig{MinLength: gzipMinLength})
	limit := s.rateLimiter()

	s.echo.GET("/", s.serveWelcome)
	s.echo.GET("/health", s.getHealth)
	s.echo.GET("/app", s.serveApp)
	s.echo.GET("/metrics", serveMetrics)

	api := s.echo.Group("/api")
	if s.cfg.Auth.Enabled {
		api.Use(s.apiKeyAuth())
	}

	api.GET("/stats", s.getStats, limit)
	api.GET("/files", s.listFiles, limit, gzip)
	api.GET("/search", s.searchFiles, limit, gzip)
	api.GET("/download", s.downloadFile, limit)
	api.HEAD("/download", s.downloadFile, limit)
	api.POST("/upload", s.uploadFile, limit)
	api.POST("/folders/create", s.createFolder, limit)
	api.DELETE("/delete/*", s.deleteItem, limit)
	api.GET("/file/info/*", s.getFileInfo, limit)

	// Players and galleries issue many small requests, so these skip the limiter.
	api.GET("/stream/*", s.streamVideo)
	api.HEAD("/stream/*", s.streamVideo)
	api.GET("/thumbnail/*", s.getThumbnail)
}
