package local

import (
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/suite"

	"homenas/pkg/fsroot"
)

var zeroTime time.Time

// storeSuite gives each test a fresh storage root
type storeSuite struct {
	suite.Suite
	tempDir string
	root    *fsroot.Root
	store   *Store
}

// SetupTest runs before each test
func (s *storeSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "local-store-test-*")
	s.Require().NoError(err)

	s.root, err = fsroot.New(filepath.Join(s.tempDir, "data"))
	s.Require().NoError(err)

	s.store = NewWithDefaults(s.root)
}

// TearDownTest runs after each test
func (s *storeSuite) TearDownTest() {
	if s.tempDir != "" {
		os.Chmod(filepath.Join(s.tempDir, "data", "locked"), 0755)
		os.RemoveAll(s.tempDir)
	}
}

func (s *storeSuite) abs(rel string) string {
	return filepath.Join(s.root.Dir(), filepath.FromSlash(rel))
}

func (s *storeSuite) writeFile(rel string, size int, modTime time.Time) {
	full := s.abs(rel)
	s.Require().NoError(os.MkdirAll(filepath.Dir(full), 0755))
	s.Require().NoError(os.WriteFile(full, make([]byte, size), 0644))
	if !modTime.IsZero() {
		s.Require().NoError(os.Chtimes(full, modTime, modTime))
	}
}

func (s *storeSuite) mkdir(rel string) {
	s.Require().NoError(os.MkdirAll(s.abs(rel), 0755))
}

func (s *storeSuite) resolve(rel string) fsroot.Path {
	p, err := s.root.Resolve(rel)
	s.Require().NoError(err)
	return p
}

// exists reports whether rel is present below the root
func (s *storeSuite) exists(rel string) bool {
	_, err := os.Lstat(s.abs(rel))
	return err == nil
}

// leftovers lists temp upload files under dir
func (s *storeSuite) leftovers(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(s.abs(dir), tempPrefix+"*"+tempSuffix))
	s.Require().NoError(err)
	return matches
}
