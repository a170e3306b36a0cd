package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestImageFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("png-bytes"))
		case "/missing":
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewImageFetcher()

	data, err := f.Fetch(context.Background(), srv.URL+"/ok")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("data = %q", data)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatalf("want error for 404")
	}
}

func TestImageDataURI(t *testing.T) {
	// PNG magic bytes drive content-type detection.
	png := []byte("\x89PNG\r\n\x1a\n rest")
	uri := imageDataURI(png)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("uri = %q", uri)
	}
}
