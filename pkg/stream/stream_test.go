package stream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"homenas/pkg/fsroot"
)

// StreamTestSuite tests range planning and chunked reads
type StreamTestSuite struct {
	suite.Suite
	tempDir string
	root    *fsroot.Root
	file    fsroot.Path
	content []byte
}

// SetupSuite writes one 20000 byte file with a recognizable pattern
func (s *StreamTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "stream-test-*")
	s.Require().NoError(err)

	s.root, err = fsroot.New(s.tempDir)
	s.Require().NoError(err)

	s.content = make([]byte, 20000)
	for i := range s.content {
		s.content[i] = byte(i % 251)
	}
	s.Require().NoError(os.WriteFile(filepath.Join(s.root.Dir(), "movie.mp4"), s.content, 0644))

	s.file, err = s.root.Resolve("movie.mp4")
	s.Require().NoError(err)
}

// TearDownSuite removes the temp directory
func (s *StreamTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *StreamTestSuite) TestPlanWithoutHeader() {
	plan := NewPlan("", 1000)
	s.Equal(Plan{Start: 0, End: 999, Size: 1000, Status: http.StatusOK, Full: true}, plan)
	s.Equal(int64(1000), plan.Length())
	s.Empty(plan.ContentRange())
}

func (s *StreamTestSuite) TestPlanValidRanges() {
	testCases := []struct {
		name   string
		header string
		start  int64
		end    int64
	}{
		{"closed", "bytes=0-99", 0, 99},
		{"open ended", "bytes=100-", 100, 999},
		{"omitted start", "bytes=-99", 0, 99},
		{"single byte", "bytes=999-999", 999, 999},
		{"end past eof", "bytes=900-5000", 900, 999},
		{"spaces", " bytes= 10 - 20 ", 10, 20},
		{"upper case unit", "Bytes=1-2", 1, 2},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			plan := NewPlan(tc.header, 1000)
			s.Equal(http.StatusPartialContent, plan.Status)
			s.False(plan.Full)
			s.NoError(plan.Fallback)
			s.Equal(tc.start, plan.Start)
			s.Equal(tc.end, plan.End)
			s.Equal(tc.end-tc.start+1, plan.Length())
		})
	}
}

func (s *StreamTestSuite) TestPlanFallbackRules() {
	testCases := []struct {
		name   string
		header string
		reason error
	}{
		{"wrong unit", "items=0-10", ErrNoRangeUnit},
		{"multiple ranges", "bytes=0-10,20-30", ErrMultipleRanges},
		{"non numeric start", "bytes=abc-10", ErrNotNumeric},
		{"non numeric end", "bytes=0-xyz", ErrNotNumeric},
		{"negative start", "bytes=--5", ErrNotNumeric},
		{"no dash", "bytes=10", ErrNotNumeric},
		{"inverted", "bytes=500-100", ErrInverted},
		{"start at size", "bytes=1000-", ErrUnsatisfiable},
		{"start past size", "bytes=5000-6000", ErrUnsatisfiable},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			plan := NewPlan(tc.header, 1000)
			s.Equal(http.StatusOK, plan.Status)
			s.True(plan.Full)
			s.Equal(int64(0), plan.Start)
			s.Equal(int64(999), plan.End)
			s.ErrorIs(plan.Fallback, tc.reason)
		})
	}
}

func (s *StreamTestSuite) TestPlanEmptyFile() {
	plan := NewPlan("", 0)
	s.Equal(int64(-1), plan.End)
	s.Equal(int64(0), plan.Length())

	plan = NewPlan("bytes=0-", 0)
	s.True(plan.Full)
	s.ErrorIs(plan.Fallback, ErrUnsatisfiable)
	s.Equal(int64(0), plan.Length())
}

func (s *StreamTestSuite) TestApplyHeaders() {
	header := http.Header{}
	NewPlan("bytes=0-99", 1000).Apply(header)
	s.Equal("bytes 0-99/1000", header.Get("Content-Range"))
	s.Equal("bytes", header.Get("Accept-Ranges"))
	s.Equal("100", header.Get("Content-Length"))

	header = http.Header{}
	NewPlan("", 1000).Apply(header)
	s.Empty(header.Get("Content-Range"))
	s.Equal("bytes", header.Get("Accept-Ranges"))
	s.Equal("1000", header.Get("Content-Length"))
}

func (s *StreamTestSuite) TestChunksFullFile() {
	plan := NewPlan("", int64(len(s.content)))
	chunks, err := Open(s.file, plan, DefaultChunkSize)
	s.Require().NoError(err)

	var got bytes.Buffer
	sizes := []int{}
	for {
		chunk, err := chunks.Next()
		if err == io.EOF {
			break
		}
		s.Require().NoError(err)
		sizes = append(sizes, len(chunk))
		got.Write(chunk)
	}

	s.Equal(s.content, got.Bytes())
	s.Equal([]int{8192, 8192, 3616}, sizes)
	s.NoError(chunks.Close())
	s.NoError(chunks.Close())

	_, err = chunks.Next()
	s.Equal(io.EOF, err)
}

func (s *StreamTestSuite) TestChunksPartialRange() {
	plan := NewPlan("bytes=100-", int64(len(s.content)))
	chunks, err := Open(s.file, plan, 1000)
	s.Require().NoError(err)

	var got bytes.Buffer
	n, err := chunks.CopyTo(context.Background(), &got)
	s.Require().NoError(err)
	s.Equal(int64(len(s.content)-100), n)
	s.Equal(s.content[100:], got.Bytes())
	s.Equal(int64(0), chunks.Remaining())
}

func (s *StreamTestSuite) TestChunksExactRange() {
	plan := NewPlan("bytes=0-99", int64(len(s.content)))
	chunks, err := Open(s.file, plan, 0)
	s.Require().NoError(err)

	var got bytes.Buffer
	_, err = chunks.CopyTo(context.Background(), &got)
	s.Require().NoError(err)
	s.Equal(s.content[:100], got.Bytes())
}

func (s *StreamTestSuite) TestChunksStopAtEarlyEOF() {
	// The file shrank after the plan was made.
	plan := NewPlan("", int64(len(s.content))+500)
	chunks, err := Open(s.file, plan, DefaultChunkSize)
	s.Require().NoError(err)

	var got bytes.Buffer
	n, err := chunks.CopyTo(context.Background(), &got)
	s.Require().NoError(err)
	s.Equal(int64(len(s.content)), n)
}

func (s *StreamTestSuite) TestChunksCancelled() {
	plan := NewPlan("", int64(len(s.content)))
	chunks, err := Open(s.file, plan, 100)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got bytes.Buffer
	n, err := chunks.CopyTo(ctx, &got)
	s.ErrorIs(err, context.Canceled)
	s.Equal(int64(0), n)

	// CopyTo released the handle.
	s.True(chunks.closed)
}

func (s *StreamTestSuite) TestOpenMissingFile() {
	missing, err := s.root.Resolve("missing.mp4")
	s.Require().NoError(err)

	_, err = Open(missing, NewPlan("", 10), DefaultChunkSize)
	s.True(os.IsNotExist(err))
}

func TestStreamSuite(t *testing.T) {
	suite.Run(t, new(StreamTestSuite))
}
