package server

import (
	"net/http"

	"homenas/pkg/log"
	"homenas/pkg/mediatype"
	"homenas/pkg/metrics"
	"homenas/pkg/thumbnail"

	"github.com/labstack/echo/v4"
)

const thumbnailCacheControl = "public, max-age=86400"

func (s *NASServer) getThumbnail(ctx echo.Context) error {
	format, err := thumbnail.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, sentence(err.Error()))
	}

	size, err := queryInt(ctx, "size", s.cfg.ThumbnailSize)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, sentence(err.Error()))
	}
	size = thumbnail.ClampSize(size)

	rel, err := wildcardPath(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid path encoding")
	}

	target, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	if _, err := s.store.StatFile(target); err != nil {
		return storeError(ctx, err, "File", rel)
	}

	if !mediatype.IsImage(target.Ext()) {
		return errorJSON(ctx, http.StatusBadRequest, "File is not an image")
	}

	data, err := thumbnail.Generate(target, size, format)
	if err != nil {
		metrics.RecordThumbnail(string(format), false)
		log.Error().Err(err).Str("path", target.Rel()).Msg("Thumbnail generation failed")
		return errorJSON(ctx, http.StatusInternalServerError, "Error generating thumbnail")
	}
	metrics.RecordThumbnail(string(format), true)

	ctx.Response().Header().Set(echo.HeaderCacheControl, thumbnailCacheControl)
	return ctx.Blob(http.StatusOK, format.ContentType(), data)
}
