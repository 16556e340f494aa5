package store

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"homenas/pkg/fsroot"
)

// AccessDeniedError is returned when a path resolves outside the storage root.
type AccessDeniedError = fsroot.AccessDeniedError

// NotFoundError is returned when the target does not exist.
type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	return "not found"
}

// NotADirectoryError is returned when a directory was expected.
type NotADirectoryError struct {
	Path string
}

func (e NotADirectoryError) Error() string {
	return "path is not a directory"
}

// NotAFileError is returned when a regular file was expected.
type NotAFileError struct {
	Path string
}

func (e NotAFileError) Error() string {
	return "path is not a file"
}

// AlreadyExistsError is returned when creating something that is already there.
type AlreadyExistsError struct {
	Path string
}

func (e AlreadyExistsError) Error() string {
	return "already exists"
}

// NotEmptyError is returned when deleting a non-empty folder without force.
type NotEmptyError struct {
	Path string
}

func (e NotEmptyError) Error() string {
	return "folder is not empty"
}

// InvalidNameError is returned for file or folder names outside the allowed pattern.
type InvalidNameError struct {
	Name string
}

func (e InvalidNameError) Error() string {
	return "invalid name"
}

// TypeNotAllowedError is returned when an upload has a disallowed extension.
type TypeNotAllowedError struct {
	Extension string
}

func (e TypeNotAllowedError) Error() string {
	if e.Extension == "" {
		return "files without an extension are not allowed"
	}
	return fmt.Sprintf("file type %s not allowed", e.Extension)
}

// TooLargeError is returned when an upload exceeds the configured size limit.
type TooLargeError struct {
	Limit int64
}

func (e TooLargeError) Error() string {
	return "file size exceeds maximum allowed size of " + humanize.IBytes(uint64(e.Limit)) //nolint:gosec // limit is positive
}

// PermissionDeniedError is returned when the OS refuses the operation.
type PermissionDeniedError struct {
	Path string
}

func (e PermissionDeniedError) Error() string {
	return "permission denied"
}
