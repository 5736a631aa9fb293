// Package config loads the process configuration for the converter.
//
// All settings come from the environment and are read exactly once at
// startup into an immutable Config value that gets injected into the
// pipeline and the web front end. Missing Mathpix credentials are not an
// error; they simply disable math recognition for the whole process.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// OCR engine selectors accepted by MATHPDF_OCR_ENGINE.
const (
	EngineTesseract  = "tesseract"
	EngineDocumentAI = "documentai"
)

// Config holds every tunable the converter reads from the environment.
type Config struct {
	SessionSecret string // signs one-shot flash cookies
	MathpixAppID  string
	MathpixAppKey string
	Port          int
	UploadDir     string // inbound PDFs, fonts and per-page images
	OutputDir     string // finished documents
	DPI           int    // rasterization resolution
	OCREngine     string // tesseract or documentai
	DocAIConfig   string // path to the Document AI processor YAML
}

// Load reads the environment and returns the resolved configuration.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 5000)
	v.SetDefault("MATHPDF_SECRET", "change-me-in-production")
	v.SetDefault("MATHPDF_UPLOAD_DIR", "uploads")
	v.SetDefault("MATHPDF_OUTPUT_DIR", "outputs")
	v.SetDefault("MATHPDF_DPI", 300)
	v.SetDefault("MATHPDF_OCR_ENGINE", EngineTesseract)

	cfg := &Config{
		SessionSecret: v.GetString("MATHPDF_SECRET"),
		MathpixAppID:  v.GetString("MATHPIX_APP_ID"),
		MathpixAppKey: v.GetString("MATHPIX_APP_KEY"),
		Port:          v.GetInt("PORT"),
		UploadDir:     v.GetString("MATHPDF_UPLOAD_DIR"),
		OutputDir:     v.GetString("MATHPDF_OUTPUT_DIR"),
		DPI:           v.GetInt("MATHPDF_DPI"),
		OCREngine:     v.GetString("MATHPDF_OCR_ENGINE"),
		DocAIConfig:   v.GetString("MATHPDF_DOCAI_CONFIG"),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.DPI <= 0 {
		return nil, fmt.Errorf("invalid MATHPDF_DPI %d", cfg.DPI)
	}
	switch cfg.OCREngine {
	case EngineTesseract, EngineDocumentAI:
	default:
		return nil, fmt.Errorf("unknown MATHPDF_OCR_ENGINE %q", cfg.OCREngine)
	}

	return cfg, nil
}

// MathpixConfigured reports whether both Mathpix credentials are present.
func (c *Config) MathpixConfigured() bool {
	return c.MathpixAppID != "" && c.MathpixAppKey != ""
}

// EnsureDirs creates the upload and output directories if they are missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.OutputDir} {
		if err := os.MkdirAll(filepath.Clean(dir), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
