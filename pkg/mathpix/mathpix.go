// Package mathpix is a minimal client for the Mathpix v3/text recognition
// API. It submits a page image and asks for a simplified-LaTeX rendition
// of any mathematics found on it.
//
// Absence of a formula is the normal case, not an error: the client
// returns a Result whose OK field is false whenever credentials are
// missing, the service is unreachable or slow, the response status is not
// 200, or the response carries no usable formula. The conversion pipeline
// treats all of these identically and continues without a formula overlay.
package mathpix

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultBaseURL is the production Mathpix text-recognition endpoint.
const DefaultBaseURL = "https://api.mathpix.com/v3/text"

// RequestTimeout bounds a single recognition call.
const RequestTimeout = 30 * time.Second

// Result is the outcome of one recognition call. OK is false when no
// usable formula was obtained, for whatever reason.
type Result struct {
	Formula string
	OK      bool
}

// Client calls the Mathpix recognition service. The zero value is not
// usable; construct with New.
type Client struct {
	appID   string
	appKey  string
	baseURL string
	httpc   *http.Client
	logger  io.Writer
}

// Option adjusts a Client at construction time.
type Option func(*Client)

// WithBaseURL overrides the service endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger directs diagnostics to w instead of stderr.
func WithLogger(w io.Writer) Option {
	return func(c *Client) { c.logger = w }
}

// New creates a recognition client. Empty credentials yield a disabled
// client whose Recognize never touches the network.
func New(appID, appKey string, opts ...Option) *Client {
	c := &Client{
		appID:   appID,
		appKey:  appKey,
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: RequestTimeout},
		logger:  os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client holds credentials.
func (c *Client) Configured() bool {
	return c.appID != "" && c.appKey != ""
}

type recognitionRequest struct {
	Src     string   `json:"src"`
	Formats []string `json:"formats"`
	OCR     []string `json:"ocr"`
}

type recognitionResponse struct {
	LatexSimplified string `json:"latex_simplified"`
	Error           string `json:"error,omitempty"`
}

// Recognize submits one PNG page image for math recognition. It issues at
// most one bounded-time request and never returns an error: every failure
// mode degrades to an absent Result and a diagnostic on the client logger.
func (c *Client) Recognize(ctx context.Context, imageData []byte) Result {
	if !c.Configured() {
		return Result{}
	}

	payload := recognitionRequest{
		Src:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData),
		Formats: []string{"latex_simplified"},
		OCR:     []string{"math", "text"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(c.logger, "mathpix: failed to encode request: %v\n", err)
		return Result{}
	}

	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(c.logger, "mathpix: failed to build request: %v\n", err)
		return Result{}
	}
	req.Header.Set("app_id", c.appID)
	req.Header.Set("app_key", c.appKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		fmt.Fprintf(c.logger, "mathpix: request failed: %v\n", err)
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		fmt.Fprintf(c.logger, "mathpix: status %d: %s\n", resp.StatusCode, bytes.TrimSpace(detail))
		return Result{}
	}

	var parsed recognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		fmt.Fprintf(c.logger, "mathpix: failed to decode response: %v\n", err)
		return Result{}
	}
	if parsed.Error != "" {
		fmt.Fprintf(c.logger, "mathpix: service error: %s\n", parsed.Error)
		return Result{}
	}
	if parsed.LatexSimplified == "" {
		fmt.Fprintf(c.logger, "mathpix: response missing latex_simplified field\n")
		return Result{}
	}
	return Result{Formula: parsed.LatexSimplified, OK: true}
}
