package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Event cover images top out well under this.
const maxImageBytes = 10 << 20

// ImageFetcher downloads thumbnail images over plain HTTP. Implements the
// reconciler's fetcher contract.
type ImageFetcher struct {
	client *http.Client
}

func NewImageFetcher() *ImageFetcher {
	return &ImageFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("fetch %s: image exceeds %d bytes", url, maxImageBytes)
	}
	return data, nil
}
