// Package manifest reads published lists of pre-generated image URLs.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bnema/ealain/internal/application/port"
)

// Options configures the sources created by New.
type Options struct {
	S3 S3Config
}

// New returns the source for rawURL: http(s) or s3://bucket/key.
func New(ctx context.Context, rawURL string, opts Options) (port.ManifestSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, fmt.Errorf("invalid manifest url %q: missing host", rawURL)
		}
		return NewHTTPSource(rawURL), nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("invalid manifest url %q: expected s3://bucket/key", rawURL)
		}
		return NewS3Source(ctx, u.Host, key, opts.S3)
	default:
		return nil, fmt.Errorf("invalid manifest url %q: unsupported scheme", rawURL)
	}
}

// collection is the grouped manifest layout: one entry per preset.
type collection struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

// parse accepts either a flat array of URLs or an array of collections.
// Duplicates and non-http entries are dropped, order is preserved.
func parse(data []byte) ([]string, error) {
	var flat []string
	if err := json.Unmarshal(data, &flat); err != nil {
		var grouped []collection
		if gerr := json.Unmarshal(data, &grouped); gerr != nil {
			return nil, fmt.Errorf("%w: manifest: %w", port.ErrDecoding, err)
		}
		for _, c := range grouped {
			flat = append(flat, c.Images...)
		}
	}

	seen := make(map[string]struct{}, len(flat))
	urls := make([]string, 0, len(flat))
	for _, raw := range flat {
		raw = strings.TrimSpace(raw)
		if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		urls = append(urls, raw)
	}
	return urls, nil
}
