package extract

import (
	"fmt"

	"github.com/mathpdf/mathpdf/pkg/config"
)

// FromConfig builds the extractor named by the process configuration.
func FromConfig(cfg *config.Config) (Extractor, error) {
	switch cfg.OCREngine {
	case config.EngineDocumentAI:
		if cfg.DocAIConfig == "" {
			return nil, fmt.Errorf("MATHPDF_DOCAI_CONFIG is required for the documentai engine")
		}
		dcfg, err := LoadDocAIConfig(cfg.DocAIConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load Document AI config: %w", err)
		}
		return NewDocumentAI(dcfg), nil
	case config.EngineTesseract:
		return NewTesseract(), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}
}
