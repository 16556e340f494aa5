package local

import (
	"errors"
	"io"
	"os"

	"homenas/pkg/fsroot"
	"homenas/pkg/log"
	"homenas/pkg/store"
)

// Delete removes target. Files are removed directly, empty folders always, and
// non-empty folders only with force. The storage root cannot be deleted.
func (s *Store) Delete(target fsroot.Path, force bool) (*store.DeleteResult, error) {
	if target.IsRoot() {
		log.Warn().Msg("Refusing to delete storage root")
		return nil, store.AccessDeniedError{Path: target.Rel()}
	}

	info, err := target.Stat()
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to stat delete target")
		}
		return nil, pathError(target.Rel(), err)
	}

	result := &store.DeleteResult{Name: target.Name(), Type: info.Kind.String()}

	if info.Kind == fsroot.KindDirectory {
		empty, err := isEmptyDir(target.Abs())
		if err != nil {
			log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to read folder before delete")
			return nil, pathError(target.Rel(), err)
		}

		switch {
		case empty:
			err = os.Remove(target.Abs())
		case force:
			result.Forced = true
			err = os.RemoveAll(target.Abs())
		default:
			log.Info().Str("path", target.Rel()).Msg("Folder not empty")
			return nil, store.NotEmptyError{Path: target.Rel()}
		}
		if err != nil {
			log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to delete folder")
			return nil, pathError(target.Rel(), err)
		}
	} else if err := os.Remove(target.Abs()); err != nil {
		log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to delete file")
		return nil, pathError(target.Rel(), err)
	}

	if s.index != nil {
		if err := s.index.DeletePrefix(target.Rel()); err != nil {
			log.Warn().Err(err).Str("path", target.Rel()).Msg("Failed to drop checksum entries")
		}
	}

	log.Info().Str("path", target.Rel()).Str("type", result.Type).Bool("forced", result.Forced).Msg("Deleted")
	return result, nil
}

func isEmptyDir(dir string) (bool, error) {
	//nolint:gosec // dir is a resolved path
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close directory")
		}
	}()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
