// Package fetch acquires query images before a scan starts: from a local
// file, a direct URL, or a wiki page that embeds the character's sprite.
// Scans themselves never touch the network.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

// Wiki servers reject requests without a browser user agent.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const requestTimeout = 10 * time.Second

// Fetcher downloads and decodes query images.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a fetcher. logger may be nil.
func NewFetcher(logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// FromFile loads a query image from a local path.
func (f *Fetcher) FromFile(path string) (*imageio.Image, error) {
	return imageio.Decode(path)
}

// FromURL downloads an image from a direct URL and decodes it.
func (f *Fetcher) FromURL(ctx context.Context, rawURL string) (*imageio.Image, error) {
	f.logger.Debug("downloading query image", zap.String("url", rawURL))
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	im, err := imageio.DecodeBytes(body, rawURL)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("downloaded query image",
		zap.String("url", rawURL),
		zap.Int("width", im.Width()),
		zap.Int("height", im.Height()),
	)
	return im, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", rawURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	return body, nil
}
