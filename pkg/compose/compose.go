// Package compose builds the output PDF: for each source page it layers
// the page raster, the extracted text block and an optional rendered
// formula image onto one A4 page.
//
// The layout is fixed: the page raster fills the page, the formula image
// sits flush to the top-right corner (downscaled so it never exceeds 45%
// of the page width, never upscaled), and the text block starts near the
// top-left corner with one output line per input line, each silently
// truncated at 200 characters.
package compose

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for image type detection
	"image/png"
	"io"
	"os"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"
)

// Layout constants, in points unless noted otherwise.
const (
	// FormulaMaxWidthRatio caps the formula image at this fraction of
	// the page width.
	FormulaMaxWidthRatio = 0.45
	// FormulaRightMargin keeps the formula clear of the right page edge.
	FormulaRightMargin = 30
	// FormulaTopMargin keeps the formula clear of the top page edge.
	FormulaTopMargin = 60
	// TextOriginX and TextOriginY anchor the text block.
	TextOriginX = 30
	TextOriginY = 40
	// TextFontSize is the size used for all overlay text.
	TextFontSize = 12
	// LineSpacing multiplies the font size to get the line advance.
	LineSpacing = 1.2
	// MaxLineChars bounds every output line; longer input lines lose
	// their tail with no truncation marker.
	MaxLineChars = 200
)

// DefaultFontName is the built-in font used when no custom font is given
// or when the custom font fails to register.
const DefaultFontName = "Helvetica"

const userFontName = "UserHand"

// Page is the per-page input to the compositor. Formula may be nil.
type Page struct {
	ImagePath string
	Text      string
	Formula   image.Image
}

// Document accumulates composited pages into one output PDF.
type Document struct {
	pdf      *fpdf.Fpdf
	fontName string
	utf8Font bool
	pages    int
	logger   io.Writer
}

// NewDocument starts an A4 portrait output document. When fontPath is
// non-empty the TTF at that path is registered for the overlay text;
// registration failure is non-fatal and downgrades the whole document to
// the default font.
func NewDocument(fontPath string, logger io.Writer) *Document {
	if logger == nil {
		logger = os.Stderr
	}
	doc := &Document{
		pdf:      fpdf.New("P", "pt", "A4", ""),
		fontName: DefaultFontName,
		logger:   logger,
	}
	if fontPath != "" {
		doc.registerFont(fontPath)
	}
	return doc
}

// registerFont attempts to register the user font, falling back to the
// default on any failure.
func (d *Document) registerFont(fontPath string) {
	data, err := os.ReadFile(fontPath)
	if err != nil {
		fmt.Fprintf(d.logger, "compose: failed to read font %s: %v, using %s\n", fontPath, err, DefaultFontName)
		return
	}
	// Validate before handing the bytes to fpdf so a corrupt font cannot
	// poison the document with a sticky error.
	if _, err := sfnt.Parse(data); err != nil {
		fmt.Fprintf(d.logger, "compose: invalid font %s: %v, using %s\n", fontPath, err, DefaultFontName)
		return
	}
	d.pdf.AddUTF8FontFromBytes(userFontName, "", data)
	if err := d.pdf.Error(); err != nil {
		fmt.Fprintf(d.logger, "compose: failed to register font %s: %v, using %s\n", fontPath, err, DefaultFontName)
		d.pdf.ClearError()
		return
	}
	d.fontName = userFontName
	d.utf8Font = true
}

// FontName reports the font the overlay text will use.
func (d *Document) FontName() string { return d.fontName }

// PageCount reports how many pages have been composited so far.
func (d *Document) PageCount() int { return d.pages }

// AddPage composites one source page onto a new output page.
func (d *Document) AddPage(page Page) error {
	d.pdf.AddPage()
	pageW, pageH := d.pdf.GetPageSize()

	if err := d.drawPageImage(page.ImagePath, pageW, pageH); err != nil {
		return err
	}
	if page.Formula != nil {
		if err := d.drawFormula(page.Formula, pageW); err != nil {
			return err
		}
	}
	d.drawText(page.Text)

	d.pages++
	return d.pdf.Error()
}

// drawPageImage places the page raster as the full-size background.
func (d *Document) drawPageImage(path string, pageW, pageH float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read page image %s: %w", path, err)
	}
	imageType, err := detectImageType(data)
	if err != nil {
		return fmt.Errorf("page image %s has invalid format: %w", path, err)
	}
	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
	name := fmt.Sprintf("page%d", d.pages+1)
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	d.pdf.ImageOptions(name, 0, 0, pageW, pageH, false, opts, 0, "")
	return d.pdf.Error()
}

// drawFormula places the rendered formula flush to the top-right corner.
func (d *Document) drawFormula(img image.Image, pageW float64) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode formula image: %w", err)
	}

	imgW := float64(img.Bounds().Dx())
	imgH := float64(img.Bounds().Dy())
	scale := formulaScale(imgW, pageW)
	drawW := imgW * scale
	drawH := imgH * scale

	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	name := fmt.Sprintf("formula%d", d.pages+1)
	d.pdf.RegisterImageOptionsReader(name, opts, &buf)
	d.pdf.ImageOptions(name, pageW-drawW-FormulaRightMargin, FormulaTopMargin, drawW, drawH, false, opts, 0, "")
	return d.pdf.Error()
}

// drawText writes the extracted text block line by line.
func (d *Document) drawText(text string) {
	d.pdf.SetFont(d.fontName, "", TextFontSize)
	y := float64(TextOriginY)
	for _, line := range splitLines(text) {
		line = TruncateLine(line)
		if !d.utf8Font {
			line = encodeLatin1(line)
		}
		d.pdf.Text(TextOriginX, y, line)
		y += TextFontSize * LineSpacing
	}
}

// Output finalizes the document and writes it to w.
func (d *Document) Output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return nil
}

// formulaScale returns the factor applied to a formula image of width
// imgW so it fits within FormulaMaxWidthRatio of pageW. Images already
// narrow enough keep their size; the scale is never above 1.
func formulaScale(imgW, pageW float64) float64 {
	if imgW <= 0 {
		return 1
	}
	maxW := pageW * FormulaMaxWidthRatio
	if imgW <= maxW {
		return 1
	}
	return maxW / imgW
}

// TruncateLine bounds a single text line at MaxLineChars characters.
// Truncation is silent: no marker is appended.
func TruncateLine(line string) string {
	runes := []rune(line)
	if len(runes) <= MaxLineChars {
		return line
	}
	return string(runes[:MaxLineChars])
}

// splitLines breaks extracted text into output lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// encodeLatin1 converts text to ISO-8859-1 for the built-in PDF fonts,
// dropping runes that have no mapping.
func encodeLatin1(s string) string {
	encoded, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		var b strings.Builder
		enc := charmap.ISO8859_1.NewEncoder()
		for _, r := range s {
			if out, err := enc.String(string(r)); err == nil {
				b.WriteString(out)
			}
		}
		return b.String()
	}
	return encoded
}

// detectImageType sniffs whether image data is PNG, JPEG, etc.
func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}
