package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"

	"github.com/mathpdf/mathpdf/pkg/config"
	"github.com/mathpdf/mathpdf/pkg/mathpix"
	"github.com/mathpdf/mathpdf/pkg/raster"
)

// stubExtractor returns canned text without touching Tesseract.
type stubExtractor struct {
	calls int
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	s.calls++
	return fmt.Sprintf("extracted text for call %d", s.calls), nil
}

// ensurePopplerAvailable skips tests that need the Poppler binaries.
func ensurePopplerAvailable(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"pdftoppm", "pdfinfo"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed in PATH", bin)
		}
	}
}

// writeSourcePDF builds a small scanned-document stand-in with n pages.
func writeSourcePDF(t *testing.T, path string, n int) {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 1; i <= n; i++ {
		pdf.AddPage()
		pdf.Text(72, 72, fmt.Sprintf("Source page %d", i))
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("failed to write source PDF: %v", err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		UploadDir: t.TempDir(),
		OutputDir: t.TempDir(),
		DPI:       72,
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"scan.pdf", "scan_converted.pdf"},
		{"/data/uploads/lecture notes.pdf", "lecture notes_converted.pdf"},
		{"noext", "noext_converted.pdf"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvertPreservesPageCount(t *testing.T) {
	ensurePopplerAvailable(t)

	cfg := testConfig(t)
	source := filepath.Join(cfg.UploadDir, "scan.pdf")
	const pages = 3
	writeSourcePDF(t, source, pages)

	recognizer := mathpix.New("", "", mathpix.WithLogger(io.Discard))
	conv := New(cfg, &stubExtractor{}, recognizer, io.Discard)

	outPath, err := conv.Convert(context.Background(), source, "")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if filepath.Base(outPath) != "scan_converted.pdf" {
		t.Errorf("output name = %s, want scan_converted.pdf", filepath.Base(outPath))
	}

	got, err := raster.PageCount(context.Background(), outPath)
	if err != nil {
		t.Fatalf("failed to count output pages: %v", err)
	}
	if got != pages {
		t.Errorf("output has %d pages, want %d", got, pages)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with a PDF header")
	}
}

func TestConvertCleansUpPageImages(t *testing.T) {
	ensurePopplerAvailable(t)

	cfg := testConfig(t)
	source := filepath.Join(cfg.UploadDir, "scan.pdf")
	writeSourcePDF(t, source, 1)

	recognizer := mathpix.New("", "", mathpix.WithLogger(io.Discard))
	conv := New(cfg, &stubExtractor{}, recognizer, io.Discard)
	if _, err := conv.Convert(context.Background(), source, ""); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	leftovers, err := filepath.Glob(filepath.Join(cfg.UploadDir, "pages-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("page image directories left behind: %v", leftovers)
	}
}

func TestConvertSurvivesUnrenderableFormula(t *testing.T) {
	ensurePopplerAvailable(t)

	// The recognition service hands back a formula the renderer cannot
	// typeset; every page must still come through with its text.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"latex_simplified": `\unrenderable{`})
	}))
	defer srv.Close()

	cfg := testConfig(t)
	source := filepath.Join(cfg.UploadDir, "scan.pdf")
	const pages = 2
	writeSourcePDF(t, source, pages)

	var diag bytes.Buffer
	recognizer := mathpix.New("id", "key", mathpix.WithBaseURL(srv.URL), mathpix.WithLogger(io.Discard))
	conv := New(cfg, &stubExtractor{}, recognizer, &diag)

	outPath, err := conv.Convert(context.Background(), source, "")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	got, err := raster.PageCount(context.Background(), outPath)
	if err != nil {
		t.Fatalf("failed to count output pages: %v", err)
	}
	if got != pages {
		t.Errorf("output has %d pages, want %d", got, pages)
	}
	if !strings.Contains(diag.String(), "formula render failed") {
		t.Errorf("render failure left no diagnostic, got: %s", diag.String())
	}
}

func TestConvertFatalOnBadSource(t *testing.T) {
	ensurePopplerAvailable(t)

	cfg := testConfig(t)
	source := filepath.Join(cfg.UploadDir, "garbage.pdf")
	if err := os.WriteFile(source, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	recognizer := mathpix.New("", "", mathpix.WithLogger(io.Discard))
	conv := New(cfg, &stubExtractor{}, recognizer, io.Discard)
	if _, err := conv.Convert(context.Background(), source, ""); err == nil {
		t.Fatal("Convert accepted a malformed source")
	}

	// A fatal failure must not leave a partial output document.
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		t.Fatalf("failed to list output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("fatal conversion left output entries: %v", entries)
	}
}
