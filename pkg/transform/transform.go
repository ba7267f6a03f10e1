package transform

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Optimize decodes data, fits it inside the requested box (never enlarging),
// optionally blurs it, and re-encodes it per opts.Format. With format auto
// the smallest encoding among the candidate set is returned.
func Optimize(data []byte, opts Options) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, err
	}

	img = fitWithin(img, opts.Width, opts.Height)

	if opts.BlurRadius > 0 {
		img = imaging.Blur(img, float64(opts.BlurRadius))
	}

	if opts.format() == FormatAuto {
		out, _, err := encodeAuto(img, opts.quality())
		return out, err
	}

	return encode(img, opts.format(), opts.quality())
}

// Convert re-encodes data into the target format at elevated quality.
// Dimensions are untouched.
func Convert(data []byte, format Format) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, err
	}

	if format == FormatAuto {
		out, _, err := encodeAuto(img, ConvertQuality)
		return out, err
	}

	return encode(img, format, ConvertQuality)
}

// Thumbnail produces a jpeg thumbnail. With a height it crops to cover the
// exact box, center-weighted; without one it fits inside the width. Never
// enlarges.
func Thumbnail(data []byte, width, height int) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	if height > 0 {
		if width > srcW {
			width = srcW
		}
		if height > srcH {
			height = srcH
		}
		img = imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	} else {
		img = fitWithin(img, width, 0)
	}

	return encode(img, FormatJPEG, ThumbnailQuality)
}

// Metadata describes a decoded image.
type Metadata struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Size     int    `json:"size"`
	Channels int    `json:"channels"`
	Density  int    `json:"density"`
}

// ExtractMetadata decodes data and reports its dimensions, detected format,
// byte size and channel count.
func ExtractMetadata(data []byte) (Metadata, error) {
	img, format, err := decode(data)
	if err != nil {
		return Metadata{}, err
	}

	bounds := img.Bounds()
	return Metadata{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Format:   format,
		Size:     len(data),
		Channels: channels(img),
		Density:  72,
	}, nil
}

// channels reports the number of color channels of the image's color model.
func channels(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.YCbCrModel:
		return 3
	default:
		return 4
	}
}
