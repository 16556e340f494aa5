package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"homenas/pkg/log"
	"homenas/pkg/metrics"

	"github.com/labstack/echo/v4"
)

const frontendFile = "index.html"

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Version           string    `json:"version"`
	BaseDirAccessible bool      `json:"base_dir_accessible"`
}

func (s *NASServer) serveWelcome(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"message": "Welcome to your Personal NAS Server!",
		"version": s.version,
		"app":     "/app",
	})
}

// getHealth handles the GET /health endpoint. It stays healthy while the storage
// root is missing so monitoring can tell a dead process from a lost disk.
func (s *NASServer) getHealth(ctx echo.Context) error {
	info, err := os.Stat(s.root.Dir())
	accessible := err == nil && info.IsDir()
	if !accessible {
		log.Warn().Err(err).Str("storage_dir", s.root.Dir()).Msg("Storage directory is not accessible")
	}

	return ctx.JSON(http.StatusOK, HealthStatus{
		Status:            "healthy",
		Timestamp:         time.Now().UTC(),
		Version:           s.version,
		BaseDirAccessible: accessible,
	})
}

func (s *NASServer) serveApp(ctx echo.Context) error {
	indexPath := filepath.Join(s.cfg.WebDir, frontendFile)
	if _, err := os.Stat(indexPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorJSON(ctx, http.StatusNotFound, "Frontend not found. Place index.html in the web directory")
		}
		log.Error().Err(err).Str("path", indexPath).Msg("Failed to stat frontend")
		return errorJSON(ctx, http.StatusInternalServerError, internalErrorMessage)
	}
	return ctx.File(indexPath)
}

func serveMetrics(ctx echo.Context) error {
	metrics.Handler().ServeHTTP(ctx.Response(), ctx.Request())
	return nil
}
