// Package webapp serves the upload form and the download endpoint around
// the conversion pipeline.
//
// The surface is deliberately small: an index page with the upload form,
// a POST endpoint that validates the uploaded files and runs one
// conversion, and a download endpoint that serves finished documents as
// attachments. Validation failures and fatal conversion errors surface as
// flash messages on the form; nothing is ever written to the outputs
// directory for a rejected upload.
package webapp

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mathpdf/mathpdf/pkg/config"
)

// allowedExtensions lists the accepted source document types.
var allowedExtensions = map[string]bool{".pdf": true}

// Converter runs one document conversion. *pipeline.Converter satisfies
// this; tests substitute their own.
type Converter interface {
	Convert(ctx context.Context, pdfPath, fontPath string) (string, error)
}

// Server holds the handlers for the upload/download surface.
type Server struct {
	cfg       *config.Config
	converter Converter
	logger    io.Writer
	tmpl      *template.Template
}

// New builds a Server around the given converter.
func New(cfg *config.Config, converter Converter, logger io.Writer) *Server {
	if logger == nil {
		logger = os.Stderr
	}
	return &Server{
		cfg:       cfg,
		converter: converter,
		logger:    logger,
		tmpl:      template.Must(template.New("index").Parse(indexTemplate)),
	}
}

// Routes returns the HTTP handler for the whole application.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/outputs/", s.handleDownload)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := struct{ Flashes []string }{Flashes: s.popFlash(w, r)}
	if err := s.tmpl.Execute(w, data); err != nil {
		fmt.Fprintf(s.logger, "webapp: failed to render index: %v\n", err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.redirectWithFlash(w, r, "Invalid upload request")
		return
	}

	pdfFile, pdfHeader, err := r.FormFile("pdf")
	if err != nil {
		s.redirectWithFlash(w, r, "No PDF file part")
		return
	}
	defer pdfFile.Close()

	if pdfHeader.Filename == "" {
		s.redirectWithFlash(w, r, "No selected file")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(pdfHeader.Filename))] {
		s.redirectWithFlash(w, r, "Invalid file type")
		return
	}

	pdfPath, err := s.saveUpload(pdfFile, pdfHeader.Filename)
	if err != nil {
		fmt.Fprintf(s.logger, "webapp: failed to save upload: %v\n", err)
		s.redirectWithFlash(w, r, "Failed to store uploaded file")
		return
	}

	fontPath := ""
	if fontFile, fontHeader, err := r.FormFile("font"); err == nil {
		defer fontFile.Close()
		if fontHeader.Filename != "" {
			fontPath, err = s.saveUpload(fontFile, fontHeader.Filename)
			if err != nil {
				fmt.Fprintf(s.logger, "webapp: failed to save font: %v\n", err)
				fontPath = ""
			}
		}
	}

	outPath, err := s.converter.Convert(r.Context(), pdfPath, fontPath)
	if err != nil {
		s.redirectWithFlash(w, r, fmt.Sprintf("Error converting PDF to images: %v", err))
		return
	}

	s.setFlash(w, "Conversion finished. Download below.")
	http.Redirect(w, r, "/outputs/"+filepath.Base(outPath), http.StatusSeeOther)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/outputs/")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.cfg.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, message string) {
	s.setFlash(w, message)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// saveUpload writes an uploaded file into the uploads directory under a
// sanitized name and returns its path.
func (s *Server) saveUpload(src multipart.File, filename string) (string, error) {
	path := filepath.Join(s.cfg.UploadDir, SecureFilename(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// SecureFilename reduces a client-supplied filename to a safe basename:
// path components are stripped and anything outside [A-Za-z0-9._-] is
// replaced with an underscore.
func SecureFilename(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
