// Package mediatype classifies files by extension.
package mediatype

import (
	"mime"
	"path/filepath"
	"strings"
)

// Fallback is sent when nothing better is known.
const Fallback = "application/octet-stream"

// DefaultVideo is the content type of a streamable file with an unknown extension.
const DefaultVideo = "video/mp4"

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".webm": true, ".flv": true, ".wmv": true, ".m4v": true,
}

// Fallbacks for systems with sparse mime tables.
var known = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".mp3":  "audio/mpeg",
	".txt":  "text/plain; charset=utf-8",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func normalize(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsImage reports whether ext (with or without the dot) is a thumbnailable image.
func IsImage(ext string) bool {
	return imageExts[normalize(ext)]
}

// IsVideo reports whether ext is served by the streaming endpoint.
func IsVideo(ext string) bool {
	return videoExts[normalize(ext)]
}

// ContentType returns the MIME type for a file name, "" when unknown.
func ContentType(name string) string {
	ext := normalize(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return known[ext]
}

// ContentTypeOr is ContentType with a default for unknown names.
func ContentTypeOr(name, fallback string) string {
	if ct := ContentType(name); ct != "" {
		return ct
	}
	return fallback
}
