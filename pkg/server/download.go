package server

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"

	"homenas/pkg/fsroot"
	"homenas/pkg/log"
	"homenas/pkg/mediatype"
	"homenas/pkg/metrics"
	"homenas/pkg/stream"

	"github.com/labstack/echo/v4"
)

func (s *NASServer) downloadFile(ctx echo.Context) error {
	rel := ctx.QueryParam("path")
	if rel == "" {
		return errorJSON(ctx, http.StatusBadRequest, "Query parameter path is required")
	}

	target, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	info, err := s.store.StatFile(target)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	log.Info().Str("path", target.Rel()).Int64("size", info.Size()).Msg("File download")

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": target.Name()})
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return s.serveRange(ctx, target, info.Size(), mediatype.Fallback, "download")
}

// serveRange writes the bytes of target selected by the Range header. Once the
// status line is out, failures are only logged.
func (s *NASServer) serveRange(ctx echo.Context, target fsroot.Path, size int64, contentType, endpoint string) error {
	plan := stream.NewPlan(ctx.Request().Header.Get("Range"), size)
	switch {
	case plan.Fallback != nil:
		metrics.RecordRangeRequest("fallback")
		log.Debug().Err(plan.Fallback).Str("path", target.Rel()).Msg("Ignoring Range header")
	case plan.Full:
		metrics.RecordRangeRequest("full")
	default:
		metrics.RecordRangeRequest("partial")
	}

	chunks, err := stream.Open(target, plan, s.cfg.ChunkSize)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorJSON(ctx, http.StatusNotFound, "File not found")
		}
		log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to open file for streaming")
		return errorJSON(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, contentType)
	plan.Apply(resp.Header())
	resp.WriteHeader(plan.Status)

	if ctx.Request().Method == http.MethodHead {
		if err := chunks.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close file")
		}
		return nil
	}

	written, err := chunks.CopyTo(ctx.Request().Context(), resp)
	metrics.RecordBytesSent(endpoint, written)
	if err != nil {
		log.Debug().Err(err).
			Str("path", target.Rel()).
			Int64("written", written).
			Int64("planned", plan.Length()).
			Msg("Transfer interrupted")
	}
	return nil
}
