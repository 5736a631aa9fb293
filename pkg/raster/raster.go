// Package raster converts PDF pages into page images using the Poppler
// command line tools (pdftoppm, pdfinfo), which must be installed on the
// system. The rasterizer is the only stage that can abort a conversion:
// a source that Poppler cannot read yields a ConversionError and no
// output document is produced.
package raster

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultDPI is the rasterization resolution used when none is configured.
const DefaultDPI = 300

// ConversionError reports a source document that could not be rasterized.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to rasterize %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Rasterize renders every page of the PDF at pdfPath into PNG files under
// workDir and returns their paths in document order. Page files are named
// page-N.png with N 1-based.
func Rasterize(ctx context.Context, pdfPath, workDir string, dpi int) ([]string, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	prefix := filepath.Join(workDir, "page")
	args := []string{"-png", "-r", strconv.Itoa(dpi), pdfPath, prefix}
	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &ConversionError{Path: pdfPath, Err: err}
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, &ConversionError{Path: pdfPath, Err: err}
	}
	if len(matches) == 0 {
		return nil, &ConversionError{Path: pdfPath, Err: errors.New("no pages rendered")}
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

// PageCount returns the number of pages in the PDF according to pdfinfo.
func PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	output, err := cmd.Output()
	if err != nil {
		return 0, &ConversionError{Path: pdfPath, Err: fmt.Errorf("pdfinfo: %w", err)}
	}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if n, convErr := strconv.Atoi(fields[1]); convErr == nil {
				return n, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, &ConversionError{Path: pdfPath, Err: errors.New("page count missing from pdfinfo output")}
}

// pageNumber extracts the 1-based page number from a pdftoppm output name
// such as page-07.png. Unparseable names sort first.
func pageNumber(path string) int {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
