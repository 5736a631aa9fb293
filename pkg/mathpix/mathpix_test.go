package mathpix

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestRecognizeSuccess(t *testing.T) {
	var gotBody recognitionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("app_id") != "id" || r.Header.Get("app_key") != "key" {
			t.Errorf("missing credential headers: %v", r.Header)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"latex_simplified": `\frac{a}{b}`})
	}))
	defer srv.Close()

	c := New("id", "key", WithBaseURL(srv.URL), WithLogger(io.Discard))
	res := c.Recognize(context.Background(), []byte("fake-png"))

	if !res.OK {
		t.Fatal("Recognize() absent, want formula")
	}
	if res.Formula != `\frac{a}{b}` {
		t.Errorf("Formula = %q, want \\frac{a}{b}", res.Formula)
	}
	if !strings.HasPrefix(gotBody.Src, "data:image/png;base64,") {
		t.Errorf("Src = %q, want data URI prefix", gotBody.Src)
	}
	if len(gotBody.Formats) != 1 || gotBody.Formats[0] != "latex_simplified" {
		t.Errorf("Formats = %v, want [latex_simplified]", gotBody.Formats)
	}
	if len(gotBody.OCR) != 2 || gotBody.OCR[0] != "math" || gotBody.OCR[1] != "text" {
		t.Errorf("OCR = %v, want [math text]", gotBody.OCR)
	}
}

func TestRecognizeWithoutCredentialsSkipsNetwork(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New("", "", WithBaseURL(srv.URL), WithLogger(io.Discard))
	if res := c.Recognize(context.Background(), []byte("img")); res.OK {
		t.Error("unconfigured client returned a formula")
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("unconfigured client made %d network calls, want 0", n)
	}
}

func TestRecognizeDegradesToAbsent(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusForbidden)
			},
		},
		{
			name: "missing formula field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"text": "no math here"})
			},
		},
		{
			name: "service error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid image"})
			},
		},
		{
			name: "malformed response body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "not json")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			var diag bytes.Buffer
			c := New("id", "key", WithBaseURL(srv.URL), WithLogger(&diag))
			if res := c.Recognize(context.Background(), []byte("img")); res.OK {
				t.Errorf("Recognize() = %+v, want absent", res)
			}
			if diag.Len() == 0 {
				t.Error("degraded response left no diagnostic")
			}
		})
	}
}

func TestRecognizeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the request fails to connect

	var diag bytes.Buffer
	c := New("id", "key", WithBaseURL(srv.URL), WithLogger(&diag))
	if res := c.Recognize(context.Background(), []byte("img")); res.OK {
		t.Error("Recognize() returned a formula from a dead server")
	}
	if diag.Len() == 0 {
		t.Error("transport failure left no diagnostic")
	}
}
