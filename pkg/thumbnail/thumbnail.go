// Package thumbnail renders small previews of stored images.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"homenas/pkg/fsroot"
)

const (
	// DefaultSize is the longest edge of a thumbnail when none is requested.
	DefaultSize = 200
	// MaxSize bounds requested sizes.
	MaxSize = 1024
	// Quality is the JPEG quality.
	Quality = 85
)

// Format is an output encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// DefaultFormat is used when the client does not ask for one.
const DefaultFormat = WebP

// ErrUnsupportedFormat is returned for output formats other than jpeg, png and webp.
var ErrUnsupportedFormat = errors.New("invalid format, must be one of: jpeg, png, webp")

// ParseFormat maps a query value to a Format. An empty value selects DefaultFormat.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return DefaultFormat, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ContentType is the MIME type of encoded thumbnails.
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// ClampSize keeps a requested edge length within 1..MaxSize, using DefaultSize
// for non-positive values.
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}

// Generate decodes the image at p, fits it inside a size x size box without
// upscaling, flattens transparency onto white and encodes it as format.
func Generate(p fsroot.Path, size int, format Format) ([]byte, error) {
	img, err := imaging.Open(p.Abs(), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return Render(img, size, format)
}

// Render resizes and encodes an already decoded image.
func Render(img image.Image, size int, format Format) ([]byte, error) {
	size = ClampSize(size)
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	bounds := thumb.Bounds()
	flat := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat = imaging.Overlay(flat, thumb, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	switch format {
	case JPEG:
		err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(Quality))
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case PNG:
		err := imaging.Encode(&buf, flat, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case WebP:
		if err := nativewebp.Encode(&buf, flat, nil); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, ErrUnsupportedFormat
	}

	return buf.Bytes(), nil
}
