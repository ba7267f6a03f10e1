// Package transform implements the image operations behind the optimization
// pipeline: resize, re-encode, automatic format selection, thumbnails, blur
// placeholders, text watermarks and metadata extraction.
//
// Every operation is a pure function over in-memory buffers; callers are
// responsible for all I/O.
package transform

import (
	"errors"
	"fmt"
)

// Format identifies an image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatGIF  Format = "gif"
	FormatTIFF Format = "tiff"
	FormatAuto Format = "auto"
)

// OutputFormats lists every format Optimize can produce, in the candidate
// order used by auto selection for the encodable subset.
var OutputFormats = []Format{FormatJPEG, FormatPNG, FormatWebP, FormatAVIF, FormatGIF, FormatTIFF, FormatAuto}

// autoCandidates is the fixed candidate set for auto format selection.
// Ties break in this order.
var autoCandidates = []Format{FormatJPEG, FormatWebP, FormatAVIF, FormatPNG}

const (
	// DefaultQuality is used when Options.Quality is zero.
	DefaultQuality = 80

	// ConvertQuality is the elevated quality used by Convert.
	ConvertQuality = 90

	// ThumbnailQuality is the jpeg quality used by Thumbnail.
	ThumbnailQuality = 80

	// MaxDimension bounds requested width and height.
	MaxDimension = 8000
)

var (
	// ErrUnsupportedFormat indicates a format Optimize cannot encode.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrDecode indicates the input bytes could not be decoded as an image.
	ErrDecode = errors.New("cannot decode image")

	// ErrAllCandidatesFailed indicates every auto-format candidate encoder failed.
	ErrAllCandidatesFailed = errors.New("all format candidates failed to encode")
)

// ParseFormat normalizes a user-supplied format name.
// "jpg" is accepted as an alias for jpeg.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJPEG, FormatPNG, FormatWebP, FormatAVIF, FormatGIF, FormatTIFF, FormatAuto:
		return Format(s), nil
	case "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: jpeg, png, webp, avif, gif, tiff, auto)", ErrUnsupportedFormat, s)
	}
}

// Options controls Optimize. Zero-valued fields take defaults.
type Options struct {
	// Width and Height bound the output. When either is set the image is
	// fitted inside the box preserving aspect ratio, never enlarged.
	Width  int
	Height int

	// Quality in 1..100; 0 means DefaultQuality.
	Quality int

	// Format selects the output encoding; empty means jpeg.
	Format Format

	// BlurRadius in 1..50 applies a Gaussian blur before encoding.
	BlurRadius int

	// MobileOptimized tightens blur-placeholder defaults.
	MobileOptimized bool
}

func (o Options) quality() int {
	if o.Quality <= 0 {
		return DefaultQuality
	}
	return o.Quality
}

func (o Options) format() Format {
	if o.Format == "" {
		return FormatJPEG
	}
	return o.Format
}

// MimeType returns the content type for an encoded format.
func MimeType(f Format) string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatGIF:
		return "image/gif"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
