package server

import (
	"net/http"

	"homenas/pkg/mediatype"

	"github.com/labstack/echo/v4"
)

const streamCacheControl = "public, max-age=3600"

// streamVideo serves a video with byte range support so players can seek.
func (s *NASServer) streamVideo(ctx echo.Context) error {
	rel, err := wildcardPath(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid path encoding")
	}

	target, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	info, err := s.store.StatFile(target)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	if !mediatype.IsVideo(target.Ext()) {
		return errorJSON(ctx, http.StatusBadRequest, "File is not a video")
	}

	ctx.Response().Header().Set(echo.HeaderCacheControl, streamCacheControl)
	return s.serveRange(ctx, target, info.Size(), mediatype.ContentTypeOr(target.Name(), mediatype.DefaultVideo), "stream")
}
