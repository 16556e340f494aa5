// Package local implements store.Store on a directory of the local disk.
package local

import (
	"errors"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"homenas/pkg/fsroot"
	"homenas/pkg/index"
	"homenas/pkg/mediatype"
	"homenas/pkg/store"
)

const (
	dirPerm  = 0750
	filePerm = 0640

	// DefaultChunkSize is the read and write size for uploads and hashing.
	DefaultChunkSize = 8192
	// DefaultMaxUploadSize is 100 MiB.
	DefaultMaxUploadSize = 100 << 20
	// DefaultThumbnailPrefix is prepended to image paths in listings.
	DefaultThumbnailPrefix = "/api/thumbnail/"

	tempPrefix = ".upload-"
	tempSuffix = ".part"
)

// DefaultAllowedExtensions are the upload types accepted out of the box.
var DefaultAllowedExtensions = []string{
	".txt", ".pdf", ".jpg", ".jpeg", ".png", ".gif", ".mp4", ".mkv",
	".zip", ".doc", ".docx", ".mp3", ".webp",
}

// ChecksumIndex caches file digests between requests.
type ChecksumIndex interface {
	Lookup(path string) (*index.Entry, error)
	Put(entry index.Entry) error
	DeletePrefix(path string) error
}

// Options configures upload limits and listing output.
type Options struct {
	MaxUploadSize int64
	// AllowedExtensions restricts uploads. An empty list accepts every extension.
	AllowedExtensions []string
	ChunkSize         int
	ThumbnailPrefix   string
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		MaxUploadSize:     DefaultMaxUploadSize,
		AllowedExtensions: DefaultAllowedExtensions,
		ChunkSize:         DefaultChunkSize,
		ThumbnailPrefix:   DefaultThumbnailPrefix,
	}
}

// Store implements the store.Store interface for a local directory tree.
type Store struct {
	root    *fsroot.Root
	opts    Options
	allowed map[string]bool
	index   ChecksumIndex
}

var _ store.Store = (*Store)(nil)

// New creates a Store rooted at root. idx may be nil, in which case checksums
// are always computed from file content.
func New(root *fsroot.Root, opts Options, idx ChecksumIndex) *Store {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ThumbnailPrefix == "" {
		opts.ThumbnailPrefix = DefaultThumbnailPrefix
	}

	allowed := make(map[string]bool, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[normalizeExt(ext)] = true
	}

	return &Store{
		root:    root,
		opts:    opts,
		allowed: allowed,
		index:   idx,
	}
}

// NewWithDefaults creates a Store with DefaultOptions and no checksum index.
func NewWithDefaults(root *fsroot.Root) *Store {
	return New(root, DefaultOptions(), nil)
}

// Root returns the storage root the store operates on.
func (s *Store) Root() *fsroot.Root {
	return s.root
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// isTempName hides in-progress uploads from listings and searches.
func isTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}

func (s *Store) thumbnailURL(rel, ext string) string {
	if !mediatype.IsImage(ext) {
		return ""
	}
	u := url.URL{Path: s.opts.ThumbnailPrefix + rel}
	return u.EscapedPath()
}

// pathError maps OS errors on p to store errors. Anything unrecognized is
// returned unchanged and treated as internal by callers.
func pathError(rel string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return store.NotFoundError{Path: rel}
	case errors.Is(err, fs.ErrPermission):
		return store.PermissionDeniedError{Path: rel}
	default:
		return err
	}
}

// requireDir stats dir and checks it is a directory.
func requireDir(dir fsroot.Path) error {
	info, err := dir.Stat()
	if err != nil {
		return pathError(dir.Rel(), err)
	}
	if info.Kind != fsroot.KindDirectory {
		return store.NotADirectoryError{Path: dir.Rel()}
	}
	return nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}
