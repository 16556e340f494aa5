package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *NASServer) getFileInfo(ctx echo.Context) error {
	rel, err := wildcardPath(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid path encoding")
	}

	includeChecksum, err := queryBool(ctx, "include_checksum")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, sentence(err.Error()))
	}

	target, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	details, err := s.store.GetFileInfo(target, includeChecksum)
	if err != nil {
		return storeError(ctx, err, "File", rel)
	}

	return ctx.JSON(http.StatusOK, details)
}
