// Package horde implements the generation client for the AI Horde API.
package horde

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

const (
	// DefaultBaseURL is the public AI Horde API root.
	DefaultBaseURL = "https://aihorde.net/api/v2"
	// AnonymousAPIKey is accepted by the Horde at the lowest priority.
	AnonymousAPIKey = "0000000000"
	// DefaultTimeout bounds every single request.
	DefaultTimeout = 5 * time.Second

	// Maximum error body kept on a ProtocolError.
	maxErrorBody = 512
)

// Config configures the Horde client.
type Config struct {
	BaseURL     string
	APIKey      string
	ClientAgent string
	Timeout     time.Duration
}

// Client implements port.GenerationClient. It never retries.
type Client struct {
	http *resty.Client
}

// NewClient creates a Horde client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = AnonymousAPIKey
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetHeader("Client-Agent", cfg.ClientAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(0)

	return &Client{http: client}
}

// Submit queues a generation request.
func (c *Client) Submit(ctx context.Context, req entity.GenerationRequest) (entity.GenerationHandle, error) {
	log := logging.FromContext(ctx)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(newAsyncRequest(req)).
		Post("/generate/async")
	if err := classify(resp, err); err != nil {
		return entity.GenerationHandle{}, err
	}

	var body asyncResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return entity.GenerationHandle{}, fmt.Errorf("%w: submit: %w", port.ErrDecoding, err)
	}
	id, err := uuid.Parse(body.ID)
	if err != nil {
		return entity.GenerationHandle{}, fmt.Errorf("%w: submit returned id %q", port.ErrDecoding, body.ID)
	}

	log.Debug().Str("id", body.ID).Float64("kudos", body.Kudos).Msg("generation submitted")
	return entity.GenerationHandle{ID: id, Kudos: body.Kudos}, nil
}

// Poll checks the progress of a request.
func (c *Client) Poll(ctx context.Context, handle entity.GenerationHandle) (entity.GenerationStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", handle.String()).
		Get("/generate/check/{id}")
	if err := classify(resp, err); err != nil {
		return entity.GenerationStatus{}, err
	}

	var body checkResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return entity.GenerationStatus{}, fmt.Errorf("%w: check: %w", port.ErrDecoding, err)
	}
	return body.status(), nil
}

// Fetch returns the generations of a finished request.
func (c *Client) Fetch(ctx context.Context, handle entity.GenerationHandle) ([]entity.GeneratedImage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", handle.String()).
		Get("/generate/status/{id}")
	if err := classify(resp, err); err != nil {
		return nil, err
	}

	var body statusResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: status: %w", port.ErrDecoding, err)
	}

	images := make([]entity.GeneratedImage, 0, len(body.Generations))
	for _, g := range body.Generations {
		img := entity.GeneratedImage{
			ID:         g.ID,
			Censored:   g.Censored,
			WorkerName: g.WorkerName,
			Model:      g.Model,
		}
		if isRemote(g.Img) {
			img.URL = g.Img
		} else {
			data, err := base64.StdEncoding.DecodeString(g.Img)
			if err != nil {
				return nil, fmt.Errorf("%w: generation %s: %w", port.ErrDecoding, g.ID, err)
			}
			img.Data = data
		}
		images = append(images, img)
	}
	return images, nil
}

func newAsyncRequest(req entity.GenerationRequest) asyncRequest {
	body := asyncRequest{
		Prompt: req.Prompt,
		Style:  req.Style,
		Params: requestParams{
			N:              req.Count,
			Width:          req.Width,
			Height:         req.Height,
			Steps:          req.Params.Steps,
			CFGScale:       req.Params.CFGScale,
			SamplerName:    req.Params.Sampler,
			Karras:         req.Params.Karras,
			PostProcessing: req.Params.PostProcessing,
		},
		NSFW:              req.NSFW,
		CensorNSFW:        req.CensorNSFW,
		TrustedWorkers:    req.TrustedWorkers,
		SlowWorkers:       req.SlowWorkers,
		Shared:            req.Shared,
		R2:                req.R2,
		ReplacementFilter: req.ReplacementFilter,
	}
	if req.Style == "" {
		body.Models = req.Models
	}
	return body
}

func (r checkResponse) status() entity.GenerationStatus {
	// Older API versions omit is_possible; absence means possible.
	possible := r.IsPossible == nil || *r.IsPossible
	return entity.GenerationStatus{
		Done:          r.Done,
		Faulted:       r.Faulted,
		Possible:      possible,
		Processing:    r.Processing,
		Waiting:       r.Waiting,
		Finished:      r.Finished,
		Restarted:     r.Restarted,
		QueuePosition: r.QueuePosition,
		WaitTime:      r.WaitTime,
		Kudos:         r.Kudos,
	}
}

// classify maps a resty result onto the port error kinds.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %w", port.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", port.ErrTransport, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &port.ProtocolError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), maxErrorBody)}
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRemote(img string) bool {
	return strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "http://")
}

var _ port.GenerationClient = (*Client)(nil)
