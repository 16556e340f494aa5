package server

import (
	"net/http"

	"homenas/pkg/log"

	"github.com/labstack/echo/v4"
)

func (s *NASServer) getStats(ctx echo.Context) error {
	stats, err := s.stats.Stats()
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect storage stats")
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to collect storage stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
