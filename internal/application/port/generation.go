// Package port defines interfaces for external dependencies.
package port

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bnema/ealain/internal/domain/entity"
)

//go:generate mockgen -destination=mocks/mock_generation_client.go -package=mocks github.com/bnema/ealain/internal/application/port GenerationClient

var (
	// ErrTransport means the request never produced a response.
	ErrTransport = errors.New("generation request failed")
	// ErrTimeout means the request exceeded its deadline. It also matches ErrTransport.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrTransport)
	// ErrDecoding means the response body could not be understood.
	ErrDecoding = errors.New("generation response malformed")
	// ErrCapacity means the remote service cannot fulfil the request right now.
	ErrCapacity = errors.New("no worker can fulfil the request")
	// ErrContentPolicy means a generated image was censored.
	ErrContentPolicy = errors.New("generated image censored")
	// ErrFaulted means the remote service gave up on the request.
	ErrFaulted = errors.New("generation faulted")
)

// ProtocolError is a non-success HTTP response from the generation service.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("generation service returned %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the service asked the client to slow down.
func (e *ProtocolError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err carries a 429 response.
func IsRateLimited(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr) && protoErr.RateLimited()
}

// GenerationClient talks to an asynchronous image generation service.
// Implementations perform exactly one attempt per call.
type GenerationClient interface {
	// Submit queues a request and returns the handle used by Poll and Fetch.
	Submit(ctx context.Context, req entity.GenerationRequest) (entity.GenerationHandle, error)

	// Poll reports the progress of a submitted request.
	Poll(ctx context.Context, handle entity.GenerationHandle) (entity.GenerationStatus, error)

	// Fetch returns the images of a finished request.
	Fetch(ctx context.Context, handle entity.GenerationHandle) ([]entity.GeneratedImage, error)
}

// ImageDownloader retrieves image bytes from a remote URL.
type ImageDownloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}
