// Package pipeline drives the complete conversion of a scanned PDF into
// an output PDF with extracted text and rendered formulas overlaid onto
// each page image.
//
// The pipeline is strictly sequential: the source is rasterized once,
// then each page in order is OCR'd, submitted for math recognition and,
// when a formula comes back, typeset into an image. The composited pages
// are assembled into a single A4 document written to the outputs
// directory.
//
// Only two failures abort a conversion: a source that cannot be
// rasterized and an output document that cannot be written. Everything
// else degrades in place; a page without a formula is still a page.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mathpdf/mathpdf/pkg/compose"
	"github.com/mathpdf/mathpdf/pkg/config"
	"github.com/mathpdf/mathpdf/pkg/extract"
	"github.com/mathpdf/mathpdf/pkg/formula"
	"github.com/mathpdf/mathpdf/pkg/mathpix"
	"github.com/mathpdf/mathpdf/pkg/raster"
)

// Page carries everything gathered for one source page. It is built once
// during per-page processing and consumed once during assembly.
type Page struct {
	Index        int         // 1-based page number
	ImagePath    string      // rasterized page image
	Text         string      // extracted text, possibly empty
	Formula      string      // simplified LaTeX, empty when recognition was absent
	FormulaImage image.Image // rendered formula, nil when absent
}

// Converter runs conversions with a fixed set of collaborators.
type Converter struct {
	cfg        *config.Config
	extractor  extract.Extractor
	recognizer *mathpix.Client
	logger     io.Writer
}

// New wires a Converter. A nil logger falls back to stderr.
func New(cfg *config.Config, extractor extract.Extractor, recognizer *mathpix.Client, logger io.Writer) *Converter {
	if logger == nil {
		logger = os.Stderr
	}
	return &Converter{
		cfg:        cfg,
		extractor:  extractor,
		recognizer: recognizer,
		logger:     logger,
	}
}

// OutputName derives the output filename for a source PDF path.
func OutputName(pdfPath string) string {
	base := filepath.Base(pdfPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_converted.pdf"
}

// Convert runs the full pipeline for one source document and returns the
// path of the finished output PDF. fontPath may be empty; a font that
// fails to register downgrades the document to the default font.
func (c *Converter) Convert(ctx context.Context, pdfPath, fontPath string) (string, error) {
	workDir, err := os.MkdirTemp(c.cfg.UploadDir, "pages-")
	if err != nil {
		return "", fmt.Errorf("failed to create page image directory: %w", err)
	}
	// Page images live only as long as this conversion, whatever happens.
	defer os.RemoveAll(workDir)

	imagePaths, err := raster.Rasterize(ctx, pdfPath, workDir, c.cfg.DPI)
	if err != nil {
		return "", err
	}

	pages := make([]Page, 0, len(imagePaths))
	for i, imagePath := range imagePaths {
		page, err := c.processPage(ctx, i+1, imagePath)
		if err != nil {
			return "", err
		}
		pages = append(pages, page)
	}

	outPath := filepath.Join(c.cfg.OutputDir, OutputName(pdfPath))
	if err := c.assemble(pages, fontPath, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// processPage gathers text and an optional formula image for one page.
func (c *Converter) processPage(ctx context.Context, index int, imagePath string) (Page, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return Page{}, fmt.Errorf("failed to read page image %d: %w", index, err)
	}

	text, err := c.extractor.ExtractText(ctx, imageData)
	if err != nil {
		return Page{}, fmt.Errorf("text extraction failed on page %d: %w", index, err)
	}

	page := Page{
		Index:     index,
		ImagePath: imagePath,
		Text:      text,
	}

	result := c.recognizer.Recognize(ctx, imageData)
	if !result.OK {
		return page, nil
	}
	page.Formula = result.Formula

	img, err := formula.Render(result.Formula)
	if err != nil {
		// Formula overlay is optional; the page keeps its text.
		fmt.Fprintf(c.logger, "pipeline: formula render failed on page %d: %v\n", index, err)
		return page, nil
	}
	page.FormulaImage = img
	return page, nil
}

// assemble composites all pages and writes the finished document. The
// output file only appears once the whole document has been generated.
func (c *Converter) assemble(pages []Page, fontPath, outPath string) error {
	doc := compose.NewDocument(fontPath, c.logger)
	for _, page := range pages {
		err := doc.AddPage(compose.Page{
			ImagePath: page.ImagePath,
			Text:      page.Text,
			Formula:   page.FormulaImage,
		})
		if err != nil {
			return fmt.Errorf("failed to composite page %d: %w", page.Index, err)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output document: %w", err)
	}
	return nil
}
