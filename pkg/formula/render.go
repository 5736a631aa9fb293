// Package formula typesets simplified-LaTeX formulas into raster images
// suitable for compositing onto an output page.
//
// Rendering happens in two steps: the formula is first typeset through
// TreeBlood into MathML and flattened into a single Unicode display
// line, then drawn as inline math in an italic
// face at a fixed resolution onto an RGBA canvas trimmed tight to the
// glyph extents with a small uniform padding. Malformed formulas fail the
// render; callers are expected to log the failure and continue without a
// formula image.
package formula

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const (
	// DPI is the fixed rendering resolution.
	DPI = 200
	// FontSize is the formula point size.
	FontSize = 18
	// Padding is the uniform border around the glyphs, 0.1 inch at DPI.
	Padding = 20
)

var (
	fontOnce   sync.Once
	italicFont *sfnt.Font
	fontErr    error
)

func loadFont() (*sfnt.Font, error) {
	fontOnce.Do(func() {
		italicFont, fontErr = opentype.Parse(goitalic.TTF)
	})
	return italicFont, fontErr
}

// Render typesets a simplified-LaTeX formula and returns the resulting
// image. It returns an error when the formula is malformed; the error
// never aborts a page, only its formula overlay.
func Render(latex string) (*image.RGBA, error) {
	text, err := typeset(latex)
	if err != nil {
		return nil, fmt.Errorf("malformed formula: %w", err)
	}

	fnt, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load formula font: %w", err)
	}
	// Faces are not safe for concurrent use, so each render gets its own.
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    FontSize,
		DPI:     DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create formula face: %w", err)
	}
	defer face.Close()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()
	width := font.MeasureString(face, text).Ceil()
	if width <= 0 {
		return nil, fmt.Errorf("formula has no visible content")
	}

	img := image.NewRGBA(image.Rect(0, 0, width+2*Padding, ascent+descent+2*Padding))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(Padding, Padding+ascent),
	}
	d.DrawString(text)
	return img, nil
}
