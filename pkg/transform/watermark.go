package transform

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// WatermarkOptions controls Watermark. Zero-valued fields take defaults.
type WatermarkOptions struct {
	// FontSize in pixels; 0 derives min(width,height)/20 from the source.
	FontSize float64

	// Bold selects the bold font face.
	Bold bool

	// Color of the label; nil means white.
	Color color.Color

	// Opacity in (0,1]; 0 means 0.7.
	Opacity float64
}

const defaultWatermarkOpacity = 0.7

// Watermark composites a text label onto the source image at bottom-center
// (x=50%, y=95%) and re-encodes it as jpeg at elevated quality.
func Watermark(data []byte, text string, opts WatermarkOptions) ([]byte, error) {
	img, _, err := decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	fontSize := opts.FontSize
	if fontSize <= 0 {
		fontSize = float64(min(w, h)) / 20
		if fontSize < 8 {
			fontSize = 8
		}
	}

	opacity := opts.Opacity
	if opacity <= 0 {
		opacity = defaultWatermarkOpacity
	}
	if opacity > 1 {
		opacity = 1
	}

	col := opts.Color
	if col == nil {
		col = color.White
	}
	r, g, b, _ := col.RGBA()
	alpha := uint8(opacity * 255)
	label := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}

	face, err := watermarkFace(fontSize, opts.Bold)
	if err != nil {
		return nil, fmt.Errorf("load watermark font: %w", err)
	}
	defer face.Close()

	canvas := image.NewNRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(label),
		Face: face,
	}

	textWidth := drawer.MeasureString(text)
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(bounds.Min.X+w/2) - textWidth/2,
		Y: fixed.I(bounds.Min.Y + h*95/100),
	}
	drawer.DrawString(text)

	return encode(canvas, FormatJPEG, ConvertQuality)
}

func watermarkFace(size float64, bold bool) (font.Face, error) {
	ttf := goregular.TTF
	if bold {
		ttf = gobold.TTF
	}

	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}

	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
