package local

import (
	"cmp"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"homenas/pkg/log"
	"homenas/pkg/store"
)

// Search walks the whole tree for regular files whose name contains the query,
// ignoring case. The walk stops as soon as Limit hits are collected and only
// those hits are sorted, so a limited result is not a global top-N.
func (s *Store) Search(ctx context.Context, query store.SearchQuery) (*store.SearchResult, error) {
	needle := strings.ToLower(strings.TrimSpace(query.Query))
	fileType := normalizeExt(query.FileType)
	result := &store.SearchResult{Hits: []store.SearchHit{}}

	walkErr := filepath.WalkDir(s.root.Dir(), func(abs string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			log.Debug().Err(err).Msg("Skipping unreadable path during search")
			return nil
		}
		if d.IsDir() || isTempName(d.Name()) {
			return nil
		}

		name := d.Name()
		if !strings.Contains(strings.ToLower(name), needle) {
			return nil
		}
		ext := normalizeExt(extOf(name))
		if fileType != "" && ext != fileType {
			return nil
		}

		hit, ok := s.searchHit(abs, d, name, ext)
		if !ok {
			return nil
		}
		result.Hits = append(result.Hits, hit)

		if query.Limit > 0 && len(result.Hits) >= query.Limit {
			result.Limited = true
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		if ctx.Err() == nil {
			log.Error().Err(walkErr).Str("query", query.Query).Msg("Search walk failed")
		}
		return nil, walkErr
	}

	sortHits(result.Hits, query.SortBy)
	return result, nil
}

// searchHit stats one candidate. Symlinks are only reported when their target is
// a regular file inside the root.
func (s *Store) searchHit(abs string, d fs.DirEntry, name, ext string) (store.SearchHit, bool) {
	rel, err := filepath.Rel(s.root.Dir(), abs)
	if err != nil {
		return store.SearchHit{}, false
	}
	rel = filepath.ToSlash(rel)

	if d.Type()&fs.ModeSymlink != 0 {
		if _, err := s.root.Resolve(rel); err != nil {
			return store.SearchHit{}, false
		}
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return store.SearchHit{}, false
	}

	return store.SearchHit{
		Filename:     name,
		Path:         rel,
		Size:         info.Size(),
		SizeHuman:    humanize.IBytes(uint64(info.Size())), //nolint:gosec // sizes are never negative
		ModifiedAt:   info.ModTime(),
		Folder:       path.Dir(rel),
		Extension:    ext,
		ThumbnailURL: s.thumbnailURL(rel, ext),
	}, true
}

// sortHits orders search results: size and date newest or largest first, name
// alphabetically. Any other key keeps walk order.
func sortHits(hits []store.SearchHit, sortBy store.SortKey) {
	switch sortBy {
	case store.SortBySize:
		slices.SortStableFunc(hits, func(a, b store.SearchHit) int { return cmp.Compare(b.Size, a.Size) })
	case store.SortByDate:
		slices.SortStableFunc(hits, func(a, b store.SearchHit) int { return b.ModifiedAt.Compare(a.ModifiedAt) })
	case store.SortByName:
		slices.SortStableFunc(hits, func(a, b store.SearchHit) int {
			return strings.Compare(strings.ToLower(a.Filename), strings.ToLower(b.Filename))
		})
	}
}
