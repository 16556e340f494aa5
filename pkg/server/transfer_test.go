package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"homenas/pkg/config"
)

func (s *ServerTestSuite) multipartBody(field, filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	s.Require().NoError(writer.WriteField("note", "ignored"))
	part, err := writer.CreateFormFile(field, filename)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	return body, writer.FormDataContentType()
}

func (s *ServerTestSuite) upload(target, filename string, content []byte) *httptest.ResponseRecorder {
	body, contentType := s.multipartBody("file", filename, content)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return s.serve(req)
}

func (s *ServerTestSuite) TestUpload() {
	content := []byte("hello from the upload test")
	s.Require().NoError(s.postFolderOK("", "docs"))

	rec := s.upload("/api/upload?path=docs", "notes.txt", content)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body uploadResponse
	s.decode(rec, &body)
	sum := sha256.Sum256(content)
	s.True(body.Success)
	s.Equal("notes.txt", body.Filename)
	s.Equal(int64(len(content)), body.Size)
	s.Equal(hex.EncodeToString(sum[:]), body.Checksum)
	s.Equal("docs/notes.txt", body.Path)

	stored, err := os.ReadFile(filepath.Join(s.root.Dir(), "docs", "notes.txt"))
	s.Require().NoError(err)
	s.Equal(content, stored)
}

func (s *ServerTestSuite) TestUploadExistingAndOverwrite() {
	s.writeFile("a.txt", []byte("old"))

	body := s.assertError(s.upload("/api/upload", "a.txt", []byte("new")), http.StatusConflict)
	s.Contains(body.Message, "overwrite=true")

	rec := s.upload("/api/upload?overwrite=true", "a.txt", []byte("new"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	stored, err := os.ReadFile(filepath.Join(s.root.Dir(), "a.txt"))
	s.Require().NoError(err)
	s.Equal("new", string(stored))
}

func (s *ServerTestSuite) TestUploadRejections() {
	body := s.assertError(s.upload("/api/upload", "tool.exe", []byte("MZ")), http.StatusBadRequest)
	s.Contains(body.Message, ".exe")
	s.False(s.exists("tool.exe"))

	s.assertError(s.upload("/api/upload?path=../..", "a.txt", []byte("x")), http.StatusForbidden)
	s.assertError(s.upload("/api/upload?path=nowhere", "a.txt", []byte("x")), http.StatusNotFound)
	s.assertError(s.upload("/api/upload?overwrite=sometimes", "a.txt", []byte("x")), http.StatusBadRequest)
}

func (s *ServerTestSuite) TestUploadTooLarge() {
	s.newServer(func(cfg *config.Config) { cfg.MaxUploadSize = 1024 })

	body := s.assertError(s.upload("/api/upload", "big.txt", make([]byte, 4096)), http.StatusRequestEntityTooLarge)
	s.Contains(body.Message, "1.0 KiB")
	s.False(s.exists("big.txt"))

	entries, err := os.ReadDir(s.root.Dir())
	s.Require().NoError(err)
	s.Empty(entries, "partial upload must be removed")
}

func (s *ServerTestSuite) TestUploadWithoutFilePart() {
	body, contentType := s.multipartBody("document", "a.txt", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	s.assertError(s.serve(req), http.StatusBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader([]byte("raw")))
	req.Header.Set("Content-Type", "text/plain")
	s.assertError(s.serve(req), http.StatusBadRequest)
}

func pattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func (s *ServerTestSuite) streamRequest(target, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	return s.serve(req)
}

func (s *ServerTestSuite) TestStreamFull() {
	content := pattern(20000)
	s.writeFile("videos/clip.mp4", content)

	rec := s.streamRequest("/api/stream/videos/clip.mp4", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("video/mp4", rec.Header().Get("Content-Type"))
	s.Equal("bytes", rec.Header().Get("Accept-Ranges"))
	s.Equal("20000", rec.Header().Get("Content-Length"))
	s.Equal(streamCacheControl, rec.Header().Get("Cache-Control"))
	s.Empty(rec.Header().Get("Content-Range"))
	s.Empty(rec.Header().Get("Content-Encoding"))
	s.Equal(content, rec.Body.Bytes())
}

func (s *ServerTestSuite) TestStreamRanges() {
	content := pattern(20000)
	s.writeFile("clip.mp4", content)

	testCases := []struct {
		name   string
		header string
		status int
		start  int
		end    int
		cr     string
	}{
		{"closed range", "bytes=100-199", http.StatusPartialContent, 100, 199, "bytes 100-199/20000"},
		{"open end", "bytes=19990-", http.StatusPartialContent, 19990, 19999, "bytes 19990-19999/20000"},
		{"end clamped", "bytes=0-999999", http.StatusPartialContent, 0, 19999, "bytes 0-19999/20000"},
		{"malformed", "bytes=abc-def", http.StatusOK, 0, 19999, ""},
		{"wrong unit", "items=0-10", http.StatusOK, 0, 19999, ""},
		{"inverted", "bytes=500-100", http.StatusOK, 0, 19999, ""},
		{"past end", "bytes=20000-", http.StatusOK, 0, 19999, ""},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			rec := s.streamRequest("/api/stream/clip.mp4", tc.header)
			s.Require().Equal(tc.status, rec.Code)
			s.Equal(tc.cr, rec.Header().Get("Content-Range"))
			s.Equal(content[tc.start:tc.end+1], rec.Body.Bytes())
		})
	}
}

func (s *ServerTestSuite) TestStreamHead() {
	s.writeFile("clip.webm", pattern(100))

	req := httptest.NewRequest(http.MethodHead, "/api/stream/clip.webm", nil)
	req.Header.Set("Range", "bytes=10-19")
	rec := s.serve(req)
	s.Equal(http.StatusPartialContent, rec.Code)
	s.Equal("10", rec.Header().Get("Content-Length"))
	s.Equal("video/webm", rec.Header().Get("Content-Type"))
	s.Empty(rec.Body.Bytes())
}

func (s *ServerTestSuite) TestStreamErrors() {
	s.writeFile("doc.txt", []byte("text"))
	s.writeFile("movies/a.mkv", []byte("x"))

	body := s.assertError(s.get("/api/stream/doc.txt"), http.StatusBadRequest)
	s.Equal("File is not a video", body.Message)
	s.assertError(s.get("/api/stream/missing.mp4"), http.StatusNotFound)
	s.assertError(s.get("/api/stream/movies"), http.StatusBadRequest)
	s.assertError(s.get("/api/stream/../outside.mp4"), http.StatusForbidden)
}

func (s *ServerTestSuite) TestDownload() {
	content := pattern(5000)
	s.writeFile("archive/backup.zip", content)

	rec := s.streamRequest("/api/download?path=archive/backup.zip", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/octet-stream", rec.Header().Get("Content-Type"))
	s.Equal(`attachment; filename=backup.zip`, rec.Header().Get("Content-Disposition"))
	s.Empty(rec.Header().Get("Content-Encoding"))
	s.Equal(content, rec.Body.Bytes())

	rec = s.streamRequest("/api/download?path=archive/backup.zip", "bytes=4000-")
	s.Require().Equal(http.StatusPartialContent, rec.Code)
	s.Equal(content[4000:], rec.Body.Bytes())
}

func (s *ServerTestSuite) TestDownloadErrors() {
	s.writeFile("dir/file.txt", []byte("x"))

	s.assertError(s.get("/api/download"), http.StatusBadRequest)
	s.assertError(s.get("/api/download?path=dir"), http.StatusBadRequest)
	s.assertError(s.get("/api/download?path=none.txt"), http.StatusNotFound)
	s.assertError(s.get("/api/download?path=../../etc/passwd"), http.StatusForbidden)
}

func (s *ServerTestSuite) writePNG(rel string, width, height int) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, img))
	s.writeFile(rel, buf.Bytes())
}

func (s *ServerTestSuite) TestThumbnail() {
	s.writePNG("photos/sky.png", 300, 150)

	rec := s.get("/api/thumbnail/photos/sky.png?format=png&size=100")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("image/png", rec.Header().Get("Content-Type"))
	s.Equal(thumbnailCacheControl, rec.Header().Get("Cache-Control"))

	img, format, err := image.Decode(io.Reader(rec.Body))
	s.Require().NoError(err)
	s.Equal("png", format)
	s.Equal(100, img.Bounds().Dx())
	s.Equal(50, img.Bounds().Dy())

	rec = s.get("/api/thumbnail/photos/sky.png")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("image/webp", rec.Header().Get("Content-Type"))
}

func (s *ServerTestSuite) TestThumbnailErrors() {
	s.writePNG("pic.png", 10, 10)
	s.writeFile("notes.txt", []byte("x"))
	s.writeFile("broken.jpg", []byte("not really a jpeg"))

	s.assertError(s.get("/api/thumbnail/pic.png?format=tiff"), http.StatusBadRequest)
	s.assertError(s.get("/api/thumbnail/pic.png?size=big"), http.StatusBadRequest)
	s.assertError(s.get("/api/thumbnail/notes.txt"), http.StatusBadRequest)
	s.assertError(s.get("/api/thumbnail/missing.png"), http.StatusNotFound)
	s.assertError(s.get("/api/thumbnail/../pic.png"), http.StatusForbidden)

	body := s.assertError(s.get("/api/thumbnail/broken.jpg"), http.StatusInternalServerError)
	s.Equal("Error generating thumbnail", body.Message)
}
