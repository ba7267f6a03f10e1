package transform

import (
	"bytes"
	"fmt"
	"image"
	"regexp"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	// Register decoders beyond imaging's built-ins.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// svgMarker matches the opening <svg tag near the start of a document,
// optionally preceded by an XML declaration or comments.
var svgMarker = regexp.MustCompile(`(?is)^\s*(?:<\?xml[^>]*\?>\s*)?(?:<!--.*?-->\s*)*(?:<!DOCTYPE[^>]*>\s*)?<svg[\s>]`)

// decode parses the input bytes into an image, accepting raster formats
// (jpeg, png, gif, webp, tiff, bmp) and SVG documents, which are rasterized
// at their natural size.
func decode(data []byte) (image.Image, string, error) {
	if isSVG(data) {
		img, err := rasterizeSVG(data)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return img, "svg", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// isSVG sniffs whether data is an SVG document. Only the first kilobyte is
// inspected.
func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return svgMarker.Match(head)
}

// rasterizeSVG renders an SVG document at the size of its viewbox.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg has no usable viewbox (%dx%d)", w, h)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	return rgba, nil
}

// fitWithin shrinks img to fit inside width x height preserving aspect
// ratio, never enlarging. A zero width or height leaves that axis unbounded.
func fitWithin(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	if width <= 0 && height <= 0 {
		return img
	}
	if width <= 0 || width > srcW {
		width = srcW
	}
	if height <= 0 || height > srcH {
		height = srcH
	}
	if width >= srcW && height >= srcH {
		return img
	}

	return imaging.Fit(img, width, height, imaging.Lanczos)
}
