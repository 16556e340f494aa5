package server

import (
	"net/http"

	"homenas/pkg/log"
	"homenas/pkg/store"

	"github.com/labstack/echo/v4"
)

type listResponse struct {
	Path  string            `json:"path"`
	Count int               `json:"count"`
	Items []store.FileEntry `json:"items"`
}

func (s *NASServer) listFiles(ctx echo.Context) error {
	rel := ctx.QueryParam("path")

	dir, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "Directory", rel)
	}

	sortBy := store.ParseSortKey(queryDefault(ctx, "sort_by", string(store.SortByName)))
	order := store.ParseOrder(ctx.QueryParam("order"))

	items, err := s.store.List(dir, sortBy, order)
	if err != nil {
		return storeError(ctx, err, "Directory", rel)
	}
	if items == nil {
		items = []store.FileEntry{}
	}

	log.Debug().Str("path", dir.Rel()).Int("count", len(items)).Msg("Directory listed")
	return ctx.JSON(http.StatusOK, listResponse{
		Path:  dir.Rel(),
		Count: len(items),
		Items: items,
	})
}
