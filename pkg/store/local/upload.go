package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"homenas/pkg/fsroot"
	"homenas/pkg/index"
	"homenas/pkg/log"
	"homenas/pkg/store"
)

// uploadSession tracks one upload from first byte to commit.
type uploadSession struct {
	dest   fsroot.Path
	temp   *os.File
	hasher hash.Hash
	size   int64
	limit  int64
}

// Upload streams req.Content into req.Dir under req.Filename. Content goes to a
// hidden temp file first and only appears under its final name once complete, so
// a failed upload leaves nothing behind. Without Overwrite the final name is
// claimed atomically and a concurrent upload of the same name fails.
func (s *Store) Upload(ctx context.Context, req store.UploadRequest) (*store.UploadResult, error) {
	name := baseName(req.Filename)
	log.Info().Str("filename", name).Str("dir", req.Dir.Rel()).Msg("Processing file upload")

	if name == "" || name == "." || name == ".." || isTempName(name) {
		return nil, store.InvalidNameError{Name: name}
	}

	ext := normalizeExt(extOf(name))
	if len(s.allowed) > 0 && !s.allowed[ext] {
		log.Info().Str("filename", name).Str("extension", ext).Msg("Rejected upload with disallowed type")
		return nil, store.TypeNotAllowedError{Extension: ext}
	}

	if err := requireDir(req.Dir); err != nil {
		return nil, err
	}

	dest, err := s.root.Child(req.Dir, name)
	if err != nil {
		return nil, err
	}

	if info, err := os.Lstat(dest.Abs()); err == nil {
		if !req.Overwrite || info.IsDir() {
			log.Info().Str("path", dest.Rel()).Msg("File already exists")
			return nil, store.AlreadyExistsError{Path: dest.Rel()}
		}
	} else if !os.IsNotExist(err) {
		return nil, pathError(dest.Rel(), err)
	}

	session, err := s.newUploadSession(req.Dir, dest)
	if err != nil {
		return nil, err
	}
	defer session.cleanup()

	if err := session.copy(ctx, req.Content, s.opts.ChunkSize); err != nil {
		return nil, err
	}

	if err := session.commit(req.Overwrite); err != nil {
		return nil, err
	}

	checksum := hex.EncodeToString(session.hasher.Sum(nil))
	s.recordChecksum(dest, session.size, checksum)

	log.Info().Str("path", dest.Rel()).Int64("size", session.size).Str("sha256", checksum).Msg("File uploaded successfully")
	return &store.UploadResult{
		Filename: name,
		Size:     session.size,
		Checksum: checksum,
		Path:     dest.Rel(),
	}, nil
}

// baseName drops any client-side directory part, including Windows separators.
func baseName(filename string) string {
	filename = strings.TrimSpace(filename)
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	return filename
}

func (s *Store) newUploadSession(dir, dest fsroot.Path) (*uploadSession, error) {
	tempPath := filepath.Join(dir.Abs(), tempPrefix+uuid.NewString()+tempSuffix)

	//nolint:gosec // tempPath is inside a resolved directory and the name is generated
	temp, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		log.Error().Err(err).Str("dir", dir.Rel()).Msg("Failed to create temporary upload file")
		return nil, pathError(dir.Rel(), err)
	}

	return &uploadSession{
		dest:   dest,
		temp:   temp,
		hasher: sha256.New(),
		limit:  s.opts.MaxUploadSize,
	}, nil
}

// copy reads src chunk by chunk, hashing and writing each chunk. It fails with
// TooLargeError as soon as the running size passes the limit.
func (u *uploadSession) copy(ctx context.Context, src io.Reader, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			u.size += int64(n)
			if u.size > u.limit {
				log.Info().Str("path", u.dest.Rel()).Int64("limit", u.limit).Msg("Upload exceeds size limit")
				return store.TooLargeError{Limit: u.limit}
			}

			u.hasher.Write(buf[:n])
			if _, err := u.temp.Write(buf[:n]); err != nil {
				log.Error().Err(err).Str("path", u.dest.Rel()).Msg("Failed to write upload chunk")
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			log.Error().Err(readErr).Str("path", u.dest.Rel()).Msg("Failed to read upload body")
			return readErr
		}
	}
}

// commit moves the temp file to its final name.
func (u *uploadSession) commit(overwrite bool) error {
	if err := u.temp.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close temporary upload file")
		return err
	}

	tempPath := u.temp.Name()
	if overwrite {
		if err := os.Rename(tempPath, u.dest.Abs()); err != nil {
			log.Error().Err(err).Str("path", u.dest.Rel()).Msg("Failed to replace destination file")
			return pathError(u.dest.Rel(), err)
		}
		return nil
	}

	err := os.Link(tempPath, u.dest.Abs())
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return store.AlreadyExistsError{Path: u.dest.Rel()}
	}

	// Some filesystems have no hard links. Reserve the name exclusively and
	// rename over the empty placeholder instead.
	log.Debug().Err(err).Str("path", u.dest.Rel()).Msg("Hard link failed, reserving name instead")
	//nolint:gosec // destination is a resolved path
	placeholder, err := os.OpenFile(u.dest.Abs(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if os.IsExist(err) {
		return store.AlreadyExistsError{Path: u.dest.Rel()}
	}
	if err != nil {
		return pathError(u.dest.Rel(), err)
	}
	if err := placeholder.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close destination placeholder")
	}
	if err := os.Rename(tempPath, u.dest.Abs()); err != nil {
		if rmErr := os.Remove(u.dest.Abs()); rmErr != nil {
			log.Error().Err(rmErr).Str("path", u.dest.Rel()).Msg("Failed to remove destination placeholder")
		}
		return pathError(u.dest.Rel(), err)
	}
	return nil
}

// cleanup closes and removes the temp file. After a successful rename the temp
// file is already gone.
func (u *uploadSession) cleanup() {
	_ = u.temp.Close()
	if err := os.Remove(u.temp.Name()); err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Str("temp_file", u.temp.Name()).Msg("Failed to remove temporary file")
	}
}

func (s *Store) recordChecksum(p fsroot.Path, size int64, checksum string) {
	if s.index == nil {
		return
	}

	info, err := p.Stat()
	if err != nil {
		log.Warn().Err(err).Str("path", p.Rel()).Msg("Failed to stat file for checksum index")
		return
	}

	if err := s.index.Put(index.Entry{
		Path:    p.Rel(),
		Size:    size,
		ModTime: info.ModTime(),
		SHA256:  checksum,
	}); err != nil {
		log.Warn().Err(err).Str("path", p.Rel()).Msg("Failed to record checksum")
	}
}
