package server

import (
	"fmt"
	"net/http"

	"homenas/pkg/log"

	"github.com/labstack/echo/v4"
)

// FolderCreateRequest is the JSON body of POST /api/folders/create.
type FolderCreateRequest struct {
	FolderPath string `json:"folder_path"`
	FolderName string `json:"folder_name"`
}

type folderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (s *NASServer) createFolder(ctx echo.Context) error {
	var req FolderCreateRequest
	if err := ctx.Bind(&req); err != nil {
		log.Info().Err(err).Msg("Invalid folder request body")
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	parent, err := s.root.Resolve(req.FolderPath)
	if err != nil {
		return storeError(ctx, err, "Parent directory", req.FolderPath)
	}

	created, err := s.store.CreateFolder(parent, req.FolderName)
	if err != nil {
		return storeError(ctx, err, "Folder", req.FolderPath)
	}

	return ctx.JSON(http.StatusOK, folderResponse{
		Success: true,
		Message: fmt.Sprintf("Folder '%s' created successfully", created.Name()),
		Path:    created.Rel(),
	})
}
