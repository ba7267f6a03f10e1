package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	"golang.org/x/image/tiff"
)

// encode serializes img in the given format at the given quality.
// PNG ignores quality and always uses maximum compression; GIF and TIFF
// use fixed settings.
func encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}

	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png encode: %w", err)
		}

	case FormatWebP:
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("webp encode: %w", err)
		}

	case FormatAVIF:
		if err := avif.Encode(&buf, img, avif.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("avif encode: %w", err)
		}

	case FormatGIF:
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("gif encode: %w", err)
		}

	case FormatTIFF:
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
			return nil, fmt.Errorf("tiff encode: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}

// encodeAuto encodes img in each candidate format and returns the smallest
// output with its format. Candidates that fail to encode are skipped; ties
// go to the earlier candidate.
func encodeAuto(img image.Image, quality int) ([]byte, Format, error) {
	var (
		best       []byte
		bestFormat Format
		lastErr    error
	)

	for _, candidate := range autoCandidates {
		out, err := encode(img, candidate, quality)
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || len(out) < len(best) {
			best = out
			bestFormat = candidate
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrAllCandidatesFailed, lastErr)
		}
		return nil, "", ErrAllCandidatesFailed
	}

	return best, bestFormat, nil
}
