package local

import (
	"cmp"
	"os"
	"slices"
	"strings"

	"homenas/pkg/fsroot"
	"homenas/pkg/log"
	"homenas/pkg/mediatype"
	"homenas/pkg/store"
)

// List returns the files and folders directly inside dir. Entries that cannot be
// stat'ed, that resolve outside the root, or that are neither files nor folders
// are left out.
func (s *Store) List(dir fsroot.Path, sortBy store.SortKey, order store.Order) ([]store.FileEntry, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dir.Abs())
	if err != nil {
		log.Error().Err(err).Str("path", dir.Rel()).Msg("Failed to read directory")
		return nil, pathError(dir.Rel(), err)
	}

	entries := make([]store.FileEntry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if isTempName(name) {
			continue
		}

		child, err := s.root.Child(dir, name)
		if err != nil {
			log.Debug().Str("path", joinRel(dir.Rel(), name)).Msg("Skipping entry outside storage root")
			continue
		}

		info, err := child.Stat()
		if err != nil {
			log.Debug().Err(err).Str("path", joinRel(dir.Rel(), name)).Msg("Skipping unreadable entry")
			continue
		}
		if info.Kind == fsroot.KindOther {
			continue
		}

		entries = append(entries, s.fileEntry(joinRel(dir.Rel(), name), name, info))
	}

	sortEntries(entries, sortBy, order)
	return entries, nil
}

func (s *Store) fileEntry(rel, name string, info fsroot.Info) store.FileEntry {
	entry := store.FileEntry{
		Name:       name,
		IsFile:     info.Kind == fsroot.KindFile,
		IsFolder:   info.Kind == fsroot.KindDirectory,
		CreatedAt:  info.Created(),
		ModifiedAt: info.ModTime(),
		Path:       rel,
	}

	if entry.IsFile {
		ext := normalizeExt(extOf(name))
		entry.Size = info.Size()
		entry.Extension = ext
		entry.MimeType = mediatype.ContentType(name)
		entry.ThumbnailURL = s.thumbnailURL(rel, ext)
	}

	return entry
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

// sortEntries orders entries in place. The sort is stable, so entries that compare
// equal keep their enumeration order in both directions.
func sortEntries(entries []store.FileEntry, sortBy store.SortKey, order store.Order) {
	var compare func(a, b store.FileEntry) int
	switch sortBy {
	case store.SortByName:
		compare = func(a, b store.FileEntry) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case store.SortBySize:
		compare = func(a, b store.FileEntry) int { return cmp.Compare(a.Size, b.Size) }
	case store.SortByDate:
		compare = func(a, b store.FileEntry) int { return a.ModifiedAt.Compare(b.ModifiedAt) }
	default:
		return
	}

	if order == store.OrderDesc {
		slices.SortStableFunc(entries, func(a, b store.FileEntry) int { return compare(b, a) })
		return
	}
	slices.SortStableFunc(entries, compare)
}
