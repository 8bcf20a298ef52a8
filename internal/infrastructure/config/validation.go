package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/logging"
)

// validateConfig performs comprehensive validation of configuration values
func validateConfig(config *Config) error {
	var validationErrors []string

	validationErrors = append(validationErrors, validateStyle(config)...)
	validationErrors = append(validationErrors, validateHorde(config)...)
	validationErrors = append(validationErrors, validateGeneration(config)...)
	validationErrors = append(validationErrors, validateCache(config)...)
	validationErrors = append(validationErrors, validateRefill(config)...)
	validationErrors = append(validationErrors, validateRotation(config)...)
	validationErrors = append(validationErrors, validateSource(config)...)
	validationErrors = append(validationErrors, validateLogging(config)...)

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(validationErrors, "\n  - "))
	}

	return nil
}

func validateStyle(config *Config) []string {
	if _, err := entity.ParseStyle(config.StyleOverride); err != nil {
		return []string{"style_override: " + err.Error()}
	}
	return nil
}

func validateHorde(config *Config) []string {
	var validationErrors []string
	if u, err := url.Parse(config.Horde.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		validationErrors = append(validationErrors, "horde.base_url must be an http(s) URL")
	}
	if agent := config.Horde.ClientAgent; agent != "" && strings.Count(agent, ":") < 2 {
		validationErrors = append(validationErrors, "horde.client_agent must look like name:version:contact")
	}
	if config.Horde.TimeoutMs <= 0 {
		validationErrors = append(validationErrors, "horde.timeout_ms must be positive")
	}
	return validationErrors
}

func validateGeneration(config *Config) []string {
	var validationErrors []string
	g := config.Generation
	if strings.TrimSpace(g.Prompt) == "" {
		validationErrors = append(validationErrors, "generation.prompt cannot be empty")
	}
	if len(g.Models) == 0 && config.StyleOverride == "" {
		validationErrors = append(validationErrors, "generation.models cannot be empty without a style_override")
	}
	if g.Count < 1 || g.Count > 20 {
		validationErrors = append(validationErrors, "generation.count must be between 1 and 20")
	}
	if g.ShortEdge < 64 || g.LongEdge < g.ShortEdge {
		validationErrors = append(validationErrors, "generation.short_edge must be at least 64 and not exceed long_edge")
	}
	if g.LongEdge%64 != 0 || g.ShortEdge%64 != 0 {
		validationErrors = append(validationErrors, "generation.long_edge and generation.short_edge must be multiples of 64")
	}
	if g.Steps < 1 || g.Steps > 500 {
		validationErrors = append(validationErrors, "generation.steps must be between 1 and 500")
	}
	if g.CFGScale <= 0 || g.CFGScale > 100 {
		validationErrors = append(validationErrors, "generation.cfg_scale must be between 0 (exclusive) and 100")
	}
	return validationErrors
}

func validateCache(config *Config) []string {
	var validationErrors []string
	if config.Cache.HighWater < 2 {
		validationErrors = append(validationErrors, "cache.high_water must be at least 2")
	}
	if config.Cache.PruneBatch < 1 {
		validationErrors = append(validationErrors, "cache.prune_batch must be at least 1")
	}
	if config.Cache.PruneIntervalMin < 1 {
		validationErrors = append(validationErrors, "cache.prune_interval_min must be at least 1")
	}
	return validationErrors
}

func validateRefill(config *Config) []string {
	var validationErrors []string
	r := config.Refill
	if r.Target < 2 {
		validationErrors = append(validationErrors, "refill.target must be at least 2")
	}
	if r.LowWater < 1 || r.LowWater > r.Target {
		validationErrors = append(validationErrors, "refill.low_water must be between 1 and refill.target")
	}
	if r.PreSubmitHoldMs < 0 || r.PostCompleteHoldMs < 0 {
		validationErrors = append(validationErrors, "refill hold durations must be non-negative")
	}
	if r.MaxFailures < 1 {
		validationErrors = append(validationErrors, "refill.max_failures must be at least 1")
	}
	if r.RateLimitPenalty <= 0 || r.RateLimitPenalty > 1 {
		validationErrors = append(validationErrors, "refill.rate_limit_penalty must be in (0, 1]")
	}
	if r.PollIntervalMs < 1000 {
		validationErrors = append(validationErrors, "refill.poll_interval_ms must be at least 1000")
	}
	if r.MaxPollFailures < 1 {
		validationErrors = append(validationErrors, "refill.max_poll_failures must be at least 1")
	}
	return validationErrors
}

func validateRotation(config *Config) []string {
	var validationErrors []string
	if config.Rotation.FadeMs <= 0 {
		validationErrors = append(validationErrors, "rotation.fade_ms must be positive")
	}
	if config.Rotation.DwellMs <= 0 {
		validationErrors = append(validationErrors, "rotation.dwell_ms must be positive")
	}
	if config.Rotation.TickMs < 10 || config.Rotation.TickMs > config.Rotation.FadeMs {
		validationErrors = append(validationErrors, "rotation.tick_ms must be at least 10 and not exceed rotation.fade_ms")
	}
	return validationErrors
}

func validateSource(config *Config) []string {
	if config.Source.Mode != SourceModeManifest {
		return nil
	}
	var validationErrors []string
	u, err := url.Parse(config.Source.ManifestURL)
	switch {
	case config.Source.ManifestURL == "":
		validationErrors = append(validationErrors, "source.manifest_url is required in manifest mode")
	case err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "s3") || u.Host == "":
		validationErrors = append(validationErrors, "source.manifest_url must be http(s):// or s3://bucket/key")
	}
	if config.Source.ManifestRefreshMin < 1 {
		validationErrors = append(validationErrors, "source.manifest_refresh_min must be at least 1")
	}
	return validationErrors
}

func validateLogging(config *Config) []string {
	var validationErrors []string
	if _, err := logging.ParseLevel(config.Logging.Level); err != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("logging.level %q is not a known level", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "console", "json":
	default:
		validationErrors = append(validationErrors, "logging.format must be console or json")
	}
	if config.Logging.MaxSizeMB < 0 || config.Logging.MaxBackups < 0 || config.Logging.MaxAgeDays < 0 {
		validationErrors = append(validationErrors, "logging rotation limits must be non-negative")
	}
	return validationErrors
}
