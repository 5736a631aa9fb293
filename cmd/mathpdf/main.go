// mathpdf converts a scanned PDF from the command line.
//
// The tool runs the same pipeline as the web front end: it rasterizes the
// source, extracts text from each page, asks the Mathpix service for a
// simplified-LaTeX formula (when credentials are configured), renders the
// formula and composites everything into a new PDF.
//
// Usage:
//
//	mathpdf -pdf scanned.pdf [options]
//
// Flags:
//
//	-pdf string    Path to the source PDF (required)
//	-font string   Path to a TTF font for the overlay text (optional)
//	-output string Output PDF path (default: <name>_converted.pdf in the
//	               configured outputs directory)
//	-dpi int       Rasterization resolution (overrides MATHPDF_DPI)
//
// Mathpix credentials and directories are taken from the environment,
// the same variables the server reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mathpdf/mathpdf/pkg/config"
	"github.com/mathpdf/mathpdf/pkg/extract"
	"github.com/mathpdf/mathpdf/pkg/mathpix"
	"github.com/mathpdf/mathpdf/pkg/pipeline"
)

func main() {
	pdfPath := flag.String("pdf", "", "Path to the source PDF (required)")
	fontPath := flag.String("font", "", "Path to a TTF font for the overlay text")
	outputPath := flag.String("output", "", "Output PDF path")
	dpi := flag.Int("dpi", 0, "Rasterization resolution")
	flag.Parse()

	if *pdfPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -pdf flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, err := os.Stat(*pdfPath); err != nil {
		log.Fatalf("Cannot read source PDF: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dpi > 0 {
		cfg.DPI = *dpi
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("Failed to prepare directories: %v", err)
	}

	extractor, err := extract.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to configure OCR engine: %v", err)
	}
	recognizer := mathpix.New(cfg.MathpixAppID, cfg.MathpixAppKey)
	if !recognizer.Configured() {
		log.Println("Mathpix credentials not set; math recognition disabled")
	}

	converter := pipeline.New(cfg, extractor, recognizer, os.Stderr)
	outPath, err := converter.Convert(context.Background(), *pdfPath, *fontPath)
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}

	if *outputPath != "" && *outputPath != outPath {
		if err := os.Rename(outPath, *outputPath); err != nil {
			log.Fatalf("Failed to move output to %s: %v", *outputPath, err)
		}
		outPath = *outputPath
	}

	abs, err := filepath.Abs(outPath)
	if err != nil {
		abs = outPath
	}
	fmt.Println("Converted document written to", abs)
}
