// Package stream plans HTTP byte-range responses and reads the planned range from
// disk in fixed-size chunks.
package stream

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const rangeUnit = "bytes="

// Reasons a Range header is ignored. A malformed header never fails the request:
// the whole file is served with status 200 instead, so seek bars in browsers keep
// working against odd clients.
var (
	ErrNoRangeUnit    = errors.New("range header does not use the bytes unit")
	ErrMultipleRanges = errors.New("multiple ranges are not supported")
	ErrNotNumeric     = errors.New("range bounds are not numeric")
	ErrInverted       = errors.New("range start is after range end")
	ErrUnsatisfiable  = errors.New("range start is beyond the end of the file")
)

// Plan is the byte range one response will carry.
type Plan struct {
	Start  int64
	End    int64
	Size   int64
	Status int
	Full   bool
	// Fallback is set when a Range header was present but ignored.
	Fallback error
}

// NewPlan computes the plan for rangeHeader against a file of size bytes.
//
//	""               -> 200, whole file
//	"bytes=a-b"      -> 206, a..min(b, size-1)
//	"bytes=a-"       -> 206, a..size-1
//	"bytes=-b"       -> 206, 0..min(b, size-1)
//	anything invalid -> 200, whole file, Fallback names the rule
func NewPlan(rangeHeader string, size int64) Plan {
	rangeHeader = strings.TrimSpace(rangeHeader)
	if rangeHeader == "" {
		return fullPlan(size, nil)
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		return fullPlan(size, err)
	}

	return Plan{
		Start:  start,
		End:    end,
		Size:   size,
		Status: http.StatusPartialContent,
	}
}

func fullPlan(size int64, reason error) Plan {
	return Plan{
		Start:    0,
		End:      size - 1,
		Size:     size,
		Status:   http.StatusOK,
		Full:     true,
		Fallback: reason,
	}
}

func parseRange(header string, size int64) (int64, int64, error) {
	if !strings.HasPrefix(strings.ToLower(header), rangeUnit) {
		return 0, 0, ErrNoRangeUnit
	}
	byteRange := strings.TrimSpace(header[len(rangeUnit):])
	if strings.Contains(byteRange, ",") {
		return 0, 0, ErrMultipleRanges
	}

	first, last, ok := strings.Cut(byteRange, "-")
	if !ok {
		return 0, 0, ErrNotNumeric
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	var start int64
	end := size - 1
	if first != "" {
		value, err := strconv.ParseUint(first, 10, 63)
		if err != nil {
			return 0, 0, ErrNotNumeric
		}
		start = int64(value) //nolint:gosec // bounded to 63 bits by ParseUint
	}
	if last != "" {
		value, err := strconv.ParseUint(last, 10, 63)
		if err != nil {
			return 0, 0, ErrNotNumeric
		}
		end = int64(value) //nolint:gosec // bounded to 63 bits by ParseUint
	}

	if start >= size {
		return 0, 0, ErrUnsatisfiable
	}
	if start > end {
		return 0, 0, ErrInverted
	}
	if end > size-1 {
		end = size - 1
	}

	return start, end, nil
}

// Length is the number of bytes the response body carries.
func (p Plan) Length() int64 {
	if p.End < p.Start {
		return 0
	}
	return p.End - p.Start + 1
}

// ContentRange is the Content-Range value for a partial response, "" otherwise.
func (p Plan) ContentRange() string {
	if p.Full {
		return ""
	}
	return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End, p.Size)
}

// Apply sets the length and range headers of the response.
func (p Plan) Apply(h http.Header) {
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(p.Length(), 10))
	if cr := p.ContentRange(); cr != "" {
		h.Set("Content-Range", cr)
	}
}
