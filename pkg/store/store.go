package store

import (
	"context"
	"io"
	"strings"
	"time"

	"homenas/pkg/fsroot"
)

// SortKey selects the field listings and search results are ordered by.
type SortKey string

const (
	SortByName SortKey = "name"
	SortBySize SortKey = "size"
	SortByDate SortKey = "date"
	// SortNone keeps enumeration order.
	SortNone SortKey = ""
)

// ParseSortKey maps a query value to a SortKey. Unknown values yield SortNone.
func ParseSortKey(value string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(value))) {
	case SortByName:
		return SortByName
	case SortBySize:
		return SortBySize
	case SortByDate:
		return SortByDate
	default:
		return SortNone
	}
}

// Order is the listing direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder returns OrderDesc for "desc" and OrderAsc for anything else.
func ParseOrder(value string) Order {
	if strings.EqualFold(strings.TrimSpace(value), string(OrderDesc)) {
		return OrderDesc
	}
	return OrderAsc
}

// FileEntry is a point-in-time projection of one directory child.
type FileEntry struct {
	Name         string    `json:"name"`
	IsFile       bool      `json:"is_file"`
	IsFolder     bool      `json:"is_folder"`
	Size         int64     `json:"file_size"`
	CreatedAt    time.Time `json:"creation_date"`
	ModifiedAt   time.Time `json:"modification_date"`
	Path         string    `json:"path"`
	Extension    string    `json:"extension,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
}

// SearchHit is a single file matched by Search.
type SearchHit struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModifiedAt   time.Time `json:"modification_date"`
	Folder       string    `json:"folder"`
	Extension    string    `json:"extension"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}

// SearchQuery describes a recursive name search.
type SearchQuery struct {
	Query    string
	FileType string
	SortBy   SortKey
	// Limit stops the walk once this many hits are collected. Zero means unlimited.
	Limit int
}

// SearchResult holds the collected hits. Limited reports that the walk stopped at
// Limit, in which case Hits is sorted but is not a global top-N.
type SearchResult struct {
	Hits    []SearchHit
	Limited bool
}

// FileDetails is the detailed metadata of a single file.
type FileDetails struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human"`
	Extension  string    `json:"extension"`
	MimeType   string    `json:"mime_type,omitempty"`
	CreatedAt  time.Time `json:"created"`
	ModifiedAt time.Time `json:"modified"`
	AccessedAt time.Time `json:"accessed"`
	Checksum   string    `json:"checksum_sha256,omitempty"`
}

// UploadRequest carries one upload into a resolved directory.
type UploadRequest struct {
	Dir       fsroot.Path
	Filename  string
	Content   io.Reader
	Overwrite bool
}

// UploadResult represents the result of an upload operation.
type UploadResult struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Path     string `json:"path"`
}

// DeleteResult describes what a delete removed.
type DeleteResult struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Forced bool   `json:"forced,omitempty"`
}

// Store defines the file and folder operations served over HTTP. Every method
// takes paths already confined by fsroot.Root.
type Store interface {
	// List returns the immediate children of dir.
	List(dir fsroot.Path, sortBy SortKey, order Order) ([]FileEntry, error)

	// Search walks the whole tree looking for file names containing the query.
	Search(ctx context.Context, query SearchQuery) (*SearchResult, error)

	// Upload streams content into dir/filename, enforcing size and type limits.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Delete removes a file, an empty folder, or with force a whole folder tree.
	Delete(target fsroot.Path, force bool) (*DeleteResult, error)

	// CreateFolder makes parent/name without creating missing ancestors.
	CreateFolder(parent fsroot.Path, name string) (fsroot.Path, error)

	// GetFileInfo returns metadata for a regular file, optionally with its SHA-256.
	GetFileInfo(target fsroot.Path, includeChecksum bool) (*FileDetails, error)

	// StatFile returns the metadata of a regular file whose content is about to be served.
	StatFile(target fsroot.Path) (fsroot.Info, error)
}
