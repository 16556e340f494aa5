package server

import (
	"net/http"
	"unicode/utf8"

	"homenas/pkg/log"
	"homenas/pkg/store"

	"github.com/labstack/echo/v4"
)

const (
	minQueryLength     = 2
	defaultSearchLimit = 100
)

type searchResponse struct {
	Query    string            `json:"query"`
	FileType *string           `json:"file_type"`
	Count    int               `json:"count"`
	Results  []store.SearchHit `json:"results"`
	Limited  bool              `json:"limited"`
}

func (s *NASServer) searchFiles(ctx echo.Context) error {
	q := ctx.QueryParam("q")
	if utf8.RuneCountInString(q) < minQueryLength {
		return errorJSON(ctx, http.StatusBadRequest, "Search query must be at least 2 characters")
	}

	limit, err := queryInt(ctx, "limit", defaultSearchLimit)
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, sentence(err.Error()))
	}

	query := store.SearchQuery{
		Query:    q,
		FileType: ctx.QueryParam("file_type"),
		SortBy:   store.ParseSortKey(queryDefault(ctx, "sort_by", string(store.SortByName))),
		Limit:    limit,
	}

	result, err := s.store.Search(ctx.Request().Context(), query)
	if err != nil {
		return storeError(ctx, err, "Directory", "")
	}

	hits := result.Hits
	if hits == nil {
		hits = []store.SearchHit{}
	}

	var fileType *string
	if query.FileType != "" {
		fileType = &query.FileType
	}

	log.Info().
		Str("query", q).
		Int("count", len(hits)).
		Bool("limited", result.Limited).
		Msg("Search completed")

	return ctx.JSON(http.StatusOK, searchResponse{
		Query:    q,
		FileType: fileType,
		Count:    len(hits),
		Results:  hits,
		Limited:  result.Limited,
	})
}
