package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/application/usecase"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/engine"
	"github.com/bnema/ealain/internal/infrastructure/cache"
	"github.com/bnema/ealain/internal/infrastructure/config"
	"github.com/bnema/ealain/internal/infrastructure/fetcher"
	"github.com/bnema/ealain/internal/infrastructure/horde"
	"github.com/bnema/ealain/internal/infrastructure/imagestore"
	"github.com/bnema/ealain/internal/infrastructure/manifest"
)

// A listed image may be downloaded again once it has been forgotten, which
// keeps a long-running slideshow cycling through a static manifest.
const (
	seenURLCapacity = 4096
	seenURLTTL      = 24 * time.Hour
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Partition resolves the partition to work on. Empty arguments fall back to
// the configuration.
func (a *App) Partition(orientation, style string) (entity.Partition, error) {
	if orientation == "" {
		orientation = string(a.Config.Orientation)
	}
	o, err := entity.ParseOrientation(orientation)
	if err != nil {
		return entity.Partition{}, err
	}
	if style == "" {
		style = a.Config.StyleOverride
	}
	style, err = entity.ParseStyle(style)
	if err != nil {
		return entity.Partition{}, err
	}
	return entity.Partition{Orientation: o, Style: style}, nil
}

// NewStore opens the image pool.
func (a *App) NewStore() (*imagestore.Store, error) {
	root, err := a.Config.ImageCacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolve image cache dir: %w", err)
	}
	return imagestore.New(imagestore.Config{
		Root:       root,
		HighWater:  a.Config.Cache.HighWater,
		PruneBatch: a.Config.Cache.PruneBatch,
	}), nil
}

// NewGenerationClient creates the remote generation client.
func (a *App) NewGenerationClient() *horde.Client {
	h := a.Config.Horde
	agent := h.ClientAgent
	if agent == "" {
		agent = a.BuildInfo.ClientAgent()
	}
	return horde.NewClient(horde.Config{
		BaseURL:     h.BaseURL,
		APIKey:      h.APIKey,
		ClientAgent: agent,
		Timeout:     h.Timeout(),
	})
}

// NewRequestBuilder turns the generation section into a request template.
func (a *App) NewRequestBuilder() *usecase.RequestBuilder {
	g := a.Config.Generation
	return usecase.NewRequestBuilder(usecase.RequestTemplate{
		Prompt:          g.Prompt,
		NegativePrompts: g.NegativePrompts,
		Styles:          g.Styles,
		Palettes:        g.Palettes,
		Models:          g.Models,
		Count:           g.Count,
		LongEdge:        g.LongEdge,
		ShortEdge:       g.ShortEdge,
		Params: entity.GenerationParams{
			Steps:          g.Steps,
			CFGScale:       g.CFGScale,
			Sampler:        g.Sampler,
			Karras:         g.Karras,
			PostProcessing: g.PostProcessing,
		},
		NSFW:              g.NSFW,
		CensorNSFW:        g.CensorNSFW,
		TrustedWorkers:    g.TrustedWorkers,
		SlowWorkers:       g.SlowWorkers,
		Shared:            g.Shared,
		R2:                g.R2,
		ReplacementFilter: g.ReplacementFilter,
	})
}

// JobConfig returns the per-job polling settings.
func (a *App) JobConfig() usecase.JobConfig {
	return usecase.JobConfig{
		PollInterval:    ms(a.Config.Refill.PollIntervalMs),
		MaxPollFailures: a.Config.Refill.MaxPollFailures,
	}
}

func (a *App) refillConfig() usecase.RefillConfig {
	r := a.Config.Refill
	return usecase.RefillConfig{
		Target:           r.Target,
		LowWater:         r.LowWater,
		PreSubmitHold:    ms(r.PreSubmitHoldMs),
		PostCompleteHold: ms(r.PostCompleteHoldMs),
		MaxFailures:      r.MaxFailures,
		RateLimitPenalty: r.RateLimitPenalty,
		PollInterval:     ms(r.PollIntervalMs),
		MaxPollFailures:  r.MaxPollFailures,
	}
}

// EngineOptions overrides the configured starting partition.
type EngineOptions struct {
	Partition entity.Partition
	Events    port.EventSink
}

// NewEngine wires store, refill source and rotation into an engine.
func (a *App) NewEngine(ctx context.Context, store *imagestore.Store, opts EngineOptions) (*engine.Engine, error) {
	cfg := a.Config
	downloader := fetcher.New()

	rotation := usecase.NewRotationScheduler(usecase.RotationConfig{
		Fade:  ms(cfg.Rotation.FadeMs),
		Dwell: ms(cfg.Rotation.DwellMs),
	}, store, opts.Events, opts.Partition)

	deps := engine.Deps{
		Store:    store,
		Rotation: rotation,
		Events:   opts.Events,
	}

	switch cfg.Source.Mode {
	case config.SourceModeManifest:
		source, err := manifest.New(ctx, cfg.Source.ManifestURL, manifest.Options{
			S3: manifest.S3Config{
				Region:          cfg.Source.S3Region,
				Endpoint:        cfg.Source.S3Endpoint,
				AccessKeyID:     cfg.Source.S3AccessKeyID,
				SecretAccessKey: cfg.Source.S3SecretAccessKey,
				UsePathStyle:    cfg.Source.S3UsePathStyle,
			},
		})
		if err != nil {
			return nil, err
		}
		deps.Manifest = usecase.NewManifestRefill(usecase.ManifestConfig{
			Target:   cfg.Refill.Target,
			LowWater: cfg.Refill.LowWater,
			Hold:     ms(cfg.Refill.PostCompleteHoldMs),
			Refresh:  time.Duration(cfg.Source.ManifestRefreshMin) * time.Minute,
			Seen:     cache.NewLRU[string, struct{}](seenURLCapacity, seenURLTTL),
		}, source, downloader, store, opts.Events)
	default:
		builder := a.NewRequestBuilder()
		deps.Refill = usecase.NewRefillController(
			a.refillConfig(),
			a.NewGenerationClient(),
			downloader,
			store,
			builder.Build,
			opts.Events,
		)
	}

	return engine.New(engine.Config{
		Tick:          ms(cfg.Rotation.TickMs),
		PruneInterval: cfg.Cache.PruneInterval(),
		Orientation:   opts.Partition.Orientation,
		Style:         opts.Partition.Style,
	}, deps)
}
