// mathpdf-server runs the web front end for the PDF math converter.
//
// It serves an upload form, converts each uploaded scanned PDF through
// the pipeline (rasterize, OCR, math recognition, formula render,
// composite) and offers the finished document for download.
//
// Configuration comes from the environment:
//
//	PORT                 Listening port (default 5000)
//	MATHPDF_SECRET       Secret used to sign flash cookies
//	MATHPIX_APP_ID       Mathpix credentials; both must be set to
//	MATHPIX_APP_KEY      enable math recognition
//	MATHPDF_UPLOAD_DIR   Directory for uploaded and temporary files
//	MATHPDF_OUTPUT_DIR   Directory for converted documents
//	MATHPDF_DPI          Rasterization resolution (default 300)
//	MATHPDF_OCR_ENGINE   tesseract (default) or documentai
//	MATHPDF_DOCAI_CONFIG YAML file with the Document AI processor
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/mathpdf/mathpdf/pkg/config"
	"github.com/mathpdf/mathpdf/pkg/extract"
	"github.com/mathpdf/mathpdf/pkg/mathpix"
	"github.com/mathpdf/mathpdf/pkg/pipeline"
	"github.com/mathpdf/mathpdf/pkg/webapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
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
	server := webapp.New(cfg, converter, os.Stderr)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Listening on %s (OCR engine: %s)", addr, extractor.Name())
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
