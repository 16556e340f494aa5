package fsroot

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a filesystem entry once, at stat time.
type Kind int

const (
	KindOther Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "folder"
	default:
		return "other"
	}
}

// KindOf maps a file mode to its Kind.
func KindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	default:
		return KindOther
	}
}

// Path is an absolute path proven to lie inside a Root. The zero value is invalid.
type Path struct {
	abs string
	rel string
}

// IsZero reports whether p was not produced by a Root.
func (p Path) IsZero() bool {
	return p.abs == ""
}

// IsRoot reports whether p is the storage root itself.
func (p Path) IsRoot() bool {
	return !p.IsZero() && p.rel == ""
}

// Abs is the canonical absolute path. It must not be shown to clients.
func (p Path) Abs() string {
	return p.abs
}

// Rel is the slash-separated path below the root, "" for the root.
func (p Path) Rel() string {
	return p.rel
}

// Name is the final path element.
func (p Path) Name() string {
	return filepath.Base(p.abs)
}

// Ext is the lower-cased extension including the dot.
func (p Path) Ext() string {
	return strings.ToLower(filepath.Ext(p.abs))
}

// Dir is the slash-separated parent below the root, "." for entries at the top level.
func (p Path) Dir() string {
	return path.Dir(p.rel)
}

// Info is the result of a single stat call.
type Info struct {
	os.FileInfo
	Kind Kind
}

// Created returns the birth time where the platform records one and the inode
// change time otherwise.
func (i Info) Created() time.Time {
	created, _ := statTimes(i.FileInfo)
	return created
}

// Accessed returns the last access time, or the modification time when unknown.
func (i Info) Accessed() time.Time {
	_, accessed := statTimes(i.FileInfo)
	return accessed
}

// Stat stats p, following symlinks.
func (p Path) Stat() (Info, error) {
	fi, err := os.Stat(p.abs)
	if err != nil {
		return Info{}, err
	}
	return NewInfo(fi), nil
}

// NewInfo classifies an existing FileInfo.
func NewInfo(fi os.FileInfo) Info {
	return Info{FileInfo: fi, Kind: KindOf(fi.Mode())}
}
