package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"homenas/pkg/store"
)

func (s *ServerTestSuite) TestListFiles() {
	s.writeFile("b.txt", []byte("bbbb"))
	s.writeFile("A.png", []byte("a"))
	s.writeFile("photos/c.jpg", []byte("cc"))

	rec := s.get("/api/files")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body listResponse
	s.decode(rec, &body)
	s.Equal("", body.Path)
	s.Equal(3, body.Count)
	s.Equal([]string{"A.png", "b.txt", "photos"}, names(body.Items))

	png := body.Items[0]
	s.True(png.IsFile)
	s.Equal(".png", png.Extension)
	s.Equal("/api/thumbnail/A.png", png.ThumbnailURL)
	s.True(body.Items[2].IsFolder)
	s.Equal(int64(0), body.Items[2].Size)
}

func (s *ServerTestSuite) TestListFilesSorted() {
	s.writeFile("small.txt", []byte("1"))
	s.writeFile("large.txt", []byte("1234567890"))
	s.writeFile("medium.txt", []byte("12345"))

	rec := s.get("/api/files?sort_by=size&order=desc")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body listResponse
	s.decode(rec, &body)
	s.Equal([]string{"large.txt", "medium.txt", "small.txt"}, names(body.Items))
}

func (s *ServerTestSuite) TestListSubdirectory() {
	s.writeFile("docs/readme.txt", []byte("hi"))

	rec := s.get("/api/files?path=docs")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body listResponse
	s.decode(rec, &body)
	s.Equal("docs", body.Path)
	s.Require().Len(body.Items, 1)
	s.Equal("docs/readme.txt", body.Items[0].Path)
}

func (s *ServerTestSuite) TestListEmptyIsArray() {
	rec := s.get("/api/files")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"items":[]`)
}

func (s *ServerTestSuite) TestListErrors() {
	s.writeFile("file.txt", []byte("x"))

	s.assertError(s.get("/api/files?path=../outside"), http.StatusForbidden)
	s.assertError(s.get("/api/files?path=missing"), http.StatusNotFound)
	s.assertError(s.get("/api/files?path=file.txt"), http.StatusBadRequest)
}

func (s *ServerTestSuite) TestListGzip() {
	for i := 0; i < 30; i++ {
		s.writeFile(fmt.Sprintf("file-%02d.txt", i), []byte("x"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := s.serve(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("gzip", rec.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(rec.Body)
	s.Require().NoError(err)
	data, err := io.ReadAll(reader)
	s.Require().NoError(err)

	var body listResponse
	s.Require().NoError(json.Unmarshal(data, &body))
	s.Equal(30, body.Count)
}

func (s *ServerTestSuite) TestSearch() {
	s.writeFile("Holiday.jpg", []byte("12"))
	s.writeFile("trips/holiday-2.mp4", []byte("1234"))
	s.writeFile("trips/notes.txt", []byte("1"))

	rec := s.get("/api/search?q=HOLI")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body searchResponse
	s.decode(rec, &body)
	s.Equal("HOLI", body.Query)
	s.Nil(body.FileType)
	s.Equal(2, body.Count)
	s.False(body.Limited)
	s.Equal([]string{"holiday-2.mp4", "Holiday.jpg"}, hitNames(body.Results))
	s.Equal("trips/holiday-2.mp4", body.Results[0].Path)
	s.Equal("trips", body.Results[0].Folder)
	s.Equal(".", body.Results[1].Folder)
}

func (s *ServerTestSuite) TestSearchFilterSortAndLimit() {
	s.writeFile("a-match.txt", []byte("1"))
	s.writeFile("b-match.txt", []byte("123"))
	s.writeFile("c-match.pdf", []byte("12345"))

	rec := s.get("/api/search?q=match&file_type=TXT&sort_by=size")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body searchResponse
	s.decode(rec, &body)
	s.Require().NotNil(body.FileType)
	s.Equal("TXT", *body.FileType)
	s.Equal([]string{"b-match.txt", "a-match.txt"}, hitNames(body.Results))

	rec = s.get("/api/search?q=match&limit=1")
	s.Require().Equal(http.StatusOK, rec.Code)
	body = searchResponse{}
	s.decode(rec, &body)
	s.Equal(1, body.Count)
	s.True(body.Limited)
}

func (s *ServerTestSuite) TestSearchValidation() {
	body := s.assertError(s.get("/api/search?q=a"), http.StatusBadRequest)
	s.Contains(body.Message, "at least 2 characters")

	s.assertError(s.get("/api/search"), http.StatusBadRequest)
	s.assertError(s.get("/api/search?q=ok&limit=many"), http.StatusBadRequest)
}

func (s *ServerTestSuite) TestFileInfo() {
	s.writeFile("docs/report.pdf", []byte("report body"))

	rec := s.get("/api/file/info/docs/report.pdf?include_checksum=true")
	s.Require().Equal(http.StatusOK, rec.Code)

	var details store.FileDetails
	s.decode(rec, &details)
	s.Equal("report.pdf", details.Name)
	s.Equal("docs/report.pdf", details.Path)
	s.Equal(int64(11), details.Size)
	s.Equal("application/pdf", details.MimeType)
	s.Len(details.Checksum, 64)

	rec = s.get("/api/file/info/docs/report.pdf")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.NotContains(rec.Body.String(), "checksum_sha256")
}

func (s *ServerTestSuite) TestFileInfoErrors() {
	s.writeFile("docs/report.pdf", []byte("x"))

	s.assertError(s.get("/api/file/info/docs"), http.StatusBadRequest)
	s.assertError(s.get("/api/file/info/nothing.txt"), http.StatusNotFound)
	s.assertError(s.get("/api/file/info/../etc/passwd"), http.StatusForbidden)
	s.assertError(s.get("/api/file/info/docs/report.pdf?include_checksum=perhaps"), http.StatusBadRequest)
}

func (s *ServerTestSuite) postFolder(parent, name string) *httptest.ResponseRecorder {
	payload, err := json.Marshal(FolderCreateRequest{FolderPath: parent, FolderName: name})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/api/folders/create", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return s.serve(req)
}

func (s *ServerTestSuite) TestCreateFolder() {
	rec := s.postFolder("", "Holiday Photos")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body folderResponse
	s.decode(rec, &body)
	s.True(body.Success)
	s.Equal("Holiday Photos", body.Path)
	s.True(s.exists("Holiday Photos"))

	rec = s.postFolder("Holiday Photos", "2024")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(s.exists("Holiday Photos/2024"))
}

func (s *ServerTestSuite) TestCreateFolderErrors() {
	s.writeFile("existing/file.txt", []byte("x"))

	s.assertError(s.postFolder("", "existing"), http.StatusConflict)
	s.assertError(s.postFolder("", "bad/name"), http.StatusBadRequest)
	s.assertError(s.postFolder("", ".."), http.StatusBadRequest)
	s.assertError(s.postFolder("", ""), http.StatusBadRequest)
	s.assertError(s.postFolder("missing", "child"), http.StatusNotFound)
	s.assertError(s.postFolder("../..", "escape"), http.StatusForbidden)
	s.False(s.exists("missing"))

	req := httptest.NewRequest(http.MethodPost, "/api/folders/create", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	s.assertError(s.serve(req), http.StatusBadRequest)
}

func (s *ServerTestSuite) del(target string) *httptest.ResponseRecorder {
	return s.serve(httptest.NewRequest(http.MethodDelete, target, nil))
}

func (s *ServerTestSuite) TestDeleteFile() {
	s.writeFile("old.txt", []byte("x"))

	rec := s.del("/api/delete/old.txt")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body deleteResponse
	s.decode(rec, &body)
	s.True(body.Success)
	s.Equal("file", body.Type)
	s.Equal("File 'old.txt' deleted successfully", body.Message)
	s.False(s.exists("old.txt"))

	s.assertError(s.del("/api/delete/old.txt"), http.StatusNotFound)
}

func (s *ServerTestSuite) TestDeleteFolders() {
	s.writeFile("full/inner/file.txt", []byte("x"))
	s.Require().NoError(s.postFolderOK("", "empty"))

	rec := s.del("/api/delete/empty")
	s.Require().Equal(http.StatusOK, rec.Code)
	var body deleteResponse
	s.decode(rec, &body)
	s.Equal("folder", body.Type)
	s.False(body.Forced)

	s.assertError(s.del("/api/delete/full"), http.StatusConflict)
	s.True(s.exists("full/inner/file.txt"))

	rec = s.del("/api/delete/full?force=true")
	s.Require().Equal(http.StatusOK, rec.Code)
	body = deleteResponse{}
	s.decode(rec, &body)
	s.True(body.Forced)
	s.Equal("Folder 'full' and all contents deleted", body.Message)
	s.False(s.exists("full"))
}

func (s *ServerTestSuite) TestDeleteRejectsRootAndTraversal() {
	s.assertError(s.del("/api/delete/"), http.StatusForbidden)
	s.assertError(s.del("/api/delete/../victim"), http.StatusForbidden)
	s.True(s.exists(""))
}

func (s *ServerTestSuite) postFolderOK(parent, name string) error {
	rec := s.postFolder(parent, name)
	if rec.Code != http.StatusOK {
		return fmt.Errorf("create folder: %d %s", rec.Code, rec.Body.String())
	}
	return nil
}

func names(items []store.FileEntry) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func hitNames(hits []store.SearchHit) []string {
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.Filename)
	}
	return out
}
