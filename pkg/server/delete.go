package server

import (
	"fmt"
	"net/http"

	"homenas/pkg/fsroot"
	"homenas/pkg/store"

	"github.com/labstack/echo/v4"
)

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Forced  bool   `json:"forced,omitempty"`
}

func (s *NASServer) deleteItem(ctx echo.Context) error {
	rel, err := wildcardPath(ctx)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid path encoding")
	}

	force, err := queryBool(ctx, "force")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, sentence(err.Error()))
	}

	target, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "Item", rel)
	}

	result, err := s.store.Delete(target, force)
	if err != nil {
		return storeError(ctx, err, "Item", rel)
	}

	return ctx.JSON(http.StatusOK, deleteResponse{
		Success: true,
		Message: deleteMessage(result),
		Type:    result.Type,
		Forced:  result.Forced,
	})
}

func deleteMessage(result *store.DeleteResult) string {
	switch {
	case result.Type == fsroot.KindFile.String():
		return fmt.Sprintf("File '%s' deleted successfully", result.Name)
	case result.Forced:
		return fmt.Sprintf("Folder '%s' and all contents deleted", result.Name)
	default:
		return fmt.Sprintf("Empty folder '%s' deleted", result.Name)
	}
}
