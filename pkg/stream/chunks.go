package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"homenas/pkg/fsroot"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 8192

// Chunks is a forward-only reader over the bytes of one Plan. It owns its file
// handle and is not restartable; a new response must call Open again.
type Chunks struct {
	file      *os.File
	buf       []byte
	remaining int64
	closed    bool
}

// Open opens p, seeks to plan.Start and prepares to read plan.Length() bytes.
func Open(p fsroot.Path, plan Plan, chunkSize int) (*Chunks, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	file, err := os.Open(p.Abs())
	if err != nil {
		return nil, err
	}

	if plan.Start > 0 {
		if _, err := file.Seek(plan.Start, io.SeekStart); err != nil {
			file.Close()
			return nil, fmt.Errorf("seek to %d: %w", plan.Start, err)
		}
	}

	return &Chunks{
		file:      file,
		buf:       make([]byte, chunkSize),
		remaining: plan.Length(),
	}, nil
}

// Next returns the next chunk. The slice is only valid until the following call.
// io.EOF is returned once the planned range is exhausted or the file ends early.
func (c *Chunks) Next() ([]byte, error) {
	if c.closed || c.remaining <= 0 {
		return nil, io.EOF
	}

	want := int64(len(c.buf))
	if c.remaining < want {
		want = c.remaining
	}

	n, err := c.file.Read(c.buf[:want])
	c.remaining -= int64(n)
	if n > 0 {
		return c.buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	if errors.Is(err, io.EOF) {
		c.remaining = 0
	}
	return nil, err
}

// Remaining is the number of planned bytes not yet returned.
func (c *Chunks) Remaining() int64 {
	return c.remaining
}

// CopyTo copies the remaining chunks to w, stopping early when ctx is cancelled.
// It closes the file before returning.
func (c *Chunks) CopyTo(ctx context.Context, w io.Writer) (int64, error) {
	defer c.Close()

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		chunk, err := c.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}

// Close releases the file handle. It is safe to call more than once.
func (c *Chunks) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}
