package transform

import (
	"image/color"

	"github.com/disintegration/imaging"
)

// PlaceholderOptions controls BlurPlaceholder.
type PlaceholderOptions struct {
	// Width of the placeholder in pixels. Mobile-optimized placeholders
	// are capped at DefaultPlaceholderWidth.
	Width int

	// Height, when set, forces the output box; the source is padded with
	// neutral grey to fill it. When zero, height follows the source
	// aspect ratio.
	Height int

	// BlurRadius is the Gaussian blur sigma.
	BlurRadius int

	// Quality is the jpeg quality before the mobile reduction.
	Quality int

	// MobileOptimized caps the width and lowers the effective quality.
	MobileOptimized bool
}

const (
	DefaultPlaceholderWidth = 40
	DefaultPlaceholderBlur  = 15
	DefaultPlaceholderQual  = 15
	minPlaceholderQuality   = 10
	mobileQualityReduction  = 5
)

// padGrey is the fill used when the target box has a different aspect ratio
// than the source.
var padGrey = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// DefaultPlaceholderOptions returns the mobile-optimized defaults.
func DefaultPlaceholderOptions() PlaceholderOptions {
	return PlaceholderOptions{
		Width:           DefaultPlaceholderWidth,
		BlurRadius:      DefaultPlaceholderBlur,
		Quality:         DefaultPlaceholderQual,
		MobileOptimized: true,
	}
}

// BlurPlaceholder produces a tiny, heavily blurred jpeg rendition of the
// source, suitable for inlining as a loading placeholder.
func BlurPlaceholder(data []byte, opts PlaceholderOptions) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, err
	}

	if opts.Width <= 0 {
		opts.Width = DefaultPlaceholderWidth
	}
	if opts.BlurRadius <= 0 {
		opts.BlurRadius = DefaultPlaceholderBlur
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultPlaceholderQual
	}

	quality := opts.Quality
	if opts.MobileOptimized {
		if opts.Height == 0 && opts.Width > DefaultPlaceholderWidth {
			opts.Width = DefaultPlaceholderWidth
		}
		quality = opts.Quality - mobileQualityReduction
		if quality < minPlaceholderQuality {
			quality = minPlaceholderQuality
		}
	}

	if opts.Height > 0 {
		// Fixed box: fit the source inside it and pad with grey.
		fitted := imaging.Fit(img, opts.Width, opts.Height, imaging.Lanczos)
		canvas := imaging.New(opts.Width, opts.Height, padGrey)
		img = imaging.PasteCenter(canvas, fitted)
	} else {
		img = imaging.Resize(img, opts.Width, 0, imaging.Lanczos)
	}

	img = imaging.Blur(img, float64(opts.BlurRadius))

	return encode(img, FormatJPEG, quality)
}
