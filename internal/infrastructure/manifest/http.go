package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/logging"
)

const httpTimeout = 15 * time.Second

// HTTPSource reads a manifest over HTTP(S).
type HTTPSource struct {
	client *resty.Client
	url    string
}

// NewHTTPSource creates a source for rawURL.
func NewHTTPSource(rawURL string) *HTTPSource {
	return &HTTPSource{
		client: resty.New().
			SetTimeout(httpTimeout).
			SetHeader("Accept", "application/json"),
		url: rawURL,
	}
}

// Fetch downloads and parses the manifest.
func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %w", port.ErrTransport, s.url, err)
	}
	if resp.IsError() {
		return nil, &port.ProtocolError{StatusCode: resp.StatusCode(), Body: resp.Status()}
	}

	urls, err := parse(resp.Body())
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug().Str("url", s.url).Int("images", len(urls)).Msg("manifest fetched")
	return urls, nil
}

var _ port.ManifestSource = (*HTTPSource)(nil)
