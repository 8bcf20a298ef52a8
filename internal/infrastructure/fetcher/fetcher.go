// Package fetcher downloads generated images from their delivery URL.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// HTTP client timeout for one image download.
	fetchTimeout = 30 * time.Second
	// Upper bound on a single image (upscaled webp stays far below this).
	maxImageSize = 32 * 1024 * 1024
)

// Fetcher retrieves image bytes over HTTP.
type Fetcher struct {
	client  *resty.Client
	maxSize int64
}

// New creates a Fetcher with default settings.
func New() *Fetcher {
	return &Fetcher{
		client: resty.New().
			SetTimeout(fetchTimeout).
			SetHeader("Accept", "image/*"),
		maxSize: maxImageSize,
	}
}

// NewWithTimeout creates a Fetcher with a custom per-download timeout.
func NewWithTimeout(timeout time.Duration) *Fetcher {
	f := New()
	f.client.SetTimeout(timeout)
	return f
}

// Download retrieves the bytes at rawURL.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	log.Debug().Str("url", rawURL).Msg("downloading image")

	// The body is streamed so an oversized image is never held in full.
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %w", port.ErrTransport, rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return nil, &port.ProtocolError{StatusCode: resp.StatusCode(), Body: resp.Status()}
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", port.ErrTransport, rawURL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", port.ErrDecoding, rawURL)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: image from %s exceeds %d bytes", port.ErrDecoding, rawURL, f.maxSize)
	}

	log.Debug().Str("url", rawURL).Int("bytes", len(data)).Msg("image downloaded")
	return data, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid image url %q: %w", rawURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid image url %q: unsupported scheme", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid image url %q: missing host", rawURL)
	}
	return nil
}

var _ port.ImageDownloader = (*Fetcher)(nil)
