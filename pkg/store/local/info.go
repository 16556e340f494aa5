package local

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"homenas/pkg/fsroot"
	"homenas/pkg/index"
	"homenas/pkg/log"
	"homenas/pkg/mediatype"
	"homenas/pkg/store"
)

// GetFileInfo returns metadata about a regular file. With includeChecksum the
// SHA-256 is served from the index when size and mtime are unchanged and
// computed otherwise.
func (s *Store) GetFileInfo(target fsroot.Path, includeChecksum bool) (*store.FileDetails, error) {
	info, err := s.StatFile(target)
	if err != nil {
		return nil, err
	}

	details := &store.FileDetails{
		Name:       target.Name(),
		Path:       target.Rel(),
		Size:       info.Size(),
		SizeHuman:  humanize.IBytes(uint64(info.Size())), //nolint:gosec // sizes are never negative
		Extension:  target.Ext(),
		MimeType:   mediatype.ContentType(target.Name()),
		CreatedAt:  info.Created(),
		ModifiedAt: info.ModTime(),
		AccessedAt: info.Accessed(),
	}

	if includeChecksum {
		checksum, err := s.checksum(target, info)
		if err != nil {
			return nil, err
		}
		details.Checksum = checksum
	}

	log.Debug().Str("path", target.Rel()).Int64("size", details.Size).Msg("File info retrieved")
	return details, nil
}

// StatFile stats target and checks it is a regular file.
func (s *Store) StatFile(target fsroot.Path) (fsroot.Info, error) {
	info, err := target.Stat()
	if err != nil {
		return fsroot.Info{}, pathError(target.Rel(), err)
	}
	if info.Kind != fsroot.KindFile {
		return fsroot.Info{}, store.NotAFileError{Path: target.Rel()}
	}
	return info, nil
}

func (s *Store) checksum(target fsroot.Path, info fsroot.Info) (string, error) {
	if s.index != nil {
		entry, err := s.index.Lookup(target.Rel())
		switch {
		case err == nil && entry.Matches(info.Size(), info.ModTime()):
			return entry.SHA256, nil
		case err != nil && !errors.Is(err, index.ErrEntryNotFound):
			log.Warn().Err(err).Str("path", target.Rel()).Msg("Checksum index lookup failed")
		}
	}

	checksum, err := hashFile(target.Abs(), s.opts.ChunkSize)
	if err != nil {
		log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to hash file")
		return "", pathError(target.Rel(), err)
	}

	s.recordChecksum(target, info.Size(), checksum)
	return checksum, nil
}

func hashFile(abs string, chunkSize int) (string, error) {
	//nolint:gosec // abs is a resolved path
	f, err := os.Open(abs)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close file after hashing")
		}
	}()

	hasher := sha256.New()
	if _, err := io.CopyBuffer(hasher, f, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
