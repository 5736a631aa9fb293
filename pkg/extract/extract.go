// Package extract turns page raster images into plain text.
//
// Two providers are available behind the Extractor interface: a local
// Tesseract engine (the default, via gosseract) and a remote Google
// Document AI processor. Both return best-effort text; an empty string is
// a valid result, an error is not expected under normal operation and is
// treated as fatal for the page by the pipeline.
//
// Tesseract requires the tesseract binary and language data installed on
// the system. Document AI requires a configured processor and
// authentication via the GOOGLE_APPLICATION_CREDENTIALS environment
// variable.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Extractor converts one raster image to plain text.
type Extractor interface {
	Name() string
	ExtractText(ctx context.Context, imageData []byte) (string, error)
}

// Tesseract performs OCR locally through gosseract. A fresh client is
// created per call, so one Tesseract value may serve concurrent requests.
type Tesseract struct {
	// Languages holds tesseract language codes, e.g. "eng", "deu".
	// Empty means the engine default.
	Languages []string
}

// NewTesseract returns a Tesseract extractor with default settings.
func NewTesseract() *Tesseract {
	return &Tesseract{}
}

// Name identifies the provider.
func (t *Tesseract) Name() string { return "tesseract" }

// ExtractText runs OCR on a single image and returns the recognized text
// with surrounding whitespace trimmed.
func (t *Tesseract) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("failed to set languages: %w", err)
		}
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
