// Package fsroot confines user-supplied relative paths to a single storage root.
//
// A Path can only be obtained from Root.Resolve or Root.Child, so holding one is
// proof that its canonical form lies inside the root.
package fsroot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const rootDirPerm = 0750

// AccessDeniedError is returned when a path would escape the storage root or cannot
// be canonicalized.
type AccessDeniedError struct {
	Path string
}

func (e AccessDeniedError) Error() string {
	return "access denied: invalid path"
}

// Root is the canonical storage directory. It never changes after New.
type Root struct {
	dir string
}

// New creates dir if needed and returns it as a canonical Root.
func New(dir string) (*Root, error) {
	if err := os.MkdirAll(dir, rootDirPerm); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize storage root: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", canonical)
	}

	return &Root{dir: canonical}, nil
}

// Dir returns the canonical absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Path returns the root itself as a resolved path.
func (r *Root) Path() Path {
	return Path{abs: r.dir}
}

// Resolve joins rel onto the root, canonicalizes the result and checks that it is
// the root or lies below it. Leading slashes are ignored, so "/a" and "a" are the
// same path. A missing final component is allowed; a missing intermediate one is not.
func (r *Root) Resolve(rel string) (Path, error) {
	if strings.ContainsRune(rel, 0) {
		return Path{}, AccessDeniedError{Path: rel}
	}

	trimmed := strings.TrimLeft(rel, "/")
	if trimmed == "" {
		return r.Path(), nil
	}

	joined := filepath.Join(r.dir, filepath.FromSlash(trimmed))
	canonical, err := canonicalize(joined)
	if err != nil {
		return Path{}, AccessDeniedError{Path: rel}
	}

	inside, ok := r.relative(canonical)
	if !ok {
		return Path{}, AccessDeniedError{Path: rel}
	}

	return Path{abs: canonical, rel: inside}, nil
}

// Child resolves a single path component below dir. Names containing separators,
// "." or ".." are rejected.
func (r *Root) Child(dir Path, name string) (Path, error) {
	if dir.IsZero() || name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\x00") || strings.ContainsRune(name, filepath.Separator) {
		return Path{}, AccessDeniedError{Path: path.Join(dir.rel, name)}
	}
	return r.Resolve(path.Join(dir.rel, name))
}

// relative returns the slash-separated path of canonical below the root, and
// whether canonical is inside the root at all. Comparison is by path components,
// so a sibling such as "/data2" never matches a root of "/data".
func (r *Root) relative(canonical string) (string, bool) {
	rel, err := filepath.Rel(r.dir, canonical)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// canonicalize resolves symlinks in p. When only the final component is missing
// the canonical parent is used instead; a final component that exists but cannot
// be resolved (a dangling symlink) is an error.
func canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if _, lerr := os.Lstat(p); lerr == nil {
		return "", err
	}

	parent, perr := filepath.EvalSymlinks(filepath.Dir(p))
	if perr != nil {
		return "", perr
	}
	return filepath.Join(parent, filepath.Base(p)), nil
}
