package local

import (
	"os"
	"regexp"

	"homenas/pkg/fsroot"
	"homenas/pkg/log"
	"homenas/pkg/store"
)

const maxNameLength = 255

// folderNamePattern allows letters, digits, underscore, hyphen, dot and space.
var folderNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_\-. ]+$`)

// ValidateFolderName checks a single folder name.
func ValidateFolderName(name string) error {
	if name == "" || len(name) > maxNameLength || name == "." || name == ".." {
		return store.InvalidNameError{Name: name}
	}
	if !folderNamePattern.MatchString(name) {
		return store.InvalidNameError{Name: name}
	}
	return nil
}

// CreateFolder makes a single new folder inside parent. Missing ancestors are
// not created.
func (s *Store) CreateFolder(parent fsroot.Path, name string) (fsroot.Path, error) {
	if err := ValidateFolderName(name); err != nil {
		log.Info().Str("name", name).Msg("Rejected folder name")
		return fsroot.Path{}, err
	}

	if err := requireDir(parent); err != nil {
		return fsroot.Path{}, err
	}

	target, err := s.root.Child(parent, name)
	if err != nil {
		return fsroot.Path{}, err
	}

	if err := os.Mkdir(target.Abs(), dirPerm); err != nil {
		if os.IsExist(err) {
			return fsroot.Path{}, store.AlreadyExistsError{Path: target.Rel()}
		}
		log.Error().Err(err).Str("path", target.Rel()).Msg("Failed to create folder")
		return fsroot.Path{}, pathError(target.Rel(), err)
	}

	log.Info().Str("path", target.Rel()).Msg("Folder created")
	return target, nil
}
