package extract

import (
	"context"
	"fmt"
	"io"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"
	"gopkg.in/yaml.v3"
)

// DocAIConfig identifies the Document AI processor used for remote OCR.
type DocAIConfig struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
}

// LoadDocAIConfig reads the processor coordinates from a YAML file.
func LoadDocAIConfig(path string) (*DocAIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DocAIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse Document AI config: %w", err)
	}
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("document AI config requires project_id, location and processor_id")
	}
	return &cfg, nil
}

// DocumentAI extracts text by sending page images to a Google Document AI
// OCR processor.
type DocumentAI struct {
	cfg *DocAIConfig
	// DebugWriter, when set, receives the raw API response as JSON for
	// each processed image.
	DebugWriter io.Writer
}

// NewDocumentAI returns a remote extractor bound to the given processor.
func NewDocumentAI(cfg *DocAIConfig) *DocumentAI {
	return &DocumentAI{cfg: cfg}
}

// Name identifies the provider.
func (d *DocumentAI) Name() string { return "documentai" }

// ExtractText sends one PNG page image to Document AI and returns the
// full text of the response document.
func (d *DocumentAI) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", d.cfg.Location)

	client, err := documentai.NewDocumentProcessorClient(
		ctx,
		option.WithEndpoint(endpoint),
		option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf(
		"projects/%s/locations/%s/processors/%s",
		d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID,
	)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imageData,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to process image: %w", err)
	}

	doc := resp.GetDocument()
	if d.DebugWriter != nil && doc != nil {
		if dump, err := protojson.Marshal(doc); err == nil {
			fmt.Fprintf(d.DebugWriter, "%s\n", dump)
		}
	}
	if doc == nil {
		return "", nil
	}
	return doc.GetText(), nil
}
