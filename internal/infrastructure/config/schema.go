package config

import "time"

// Config represents the complete configuration for ealain.
type Config struct {
	// Orientation selects the partition shown at start (landscape or portrait).
	Orientation Orientation `mapstructure:"orientation" toml:"orientation" json:"orientation" jsonschema:"enum=landscape,enum=portrait"`
	// StyleOverride is a remote style identifier. When set it replaces the configured
	// models and images go to a separate per-style pool.
	StyleOverride string `mapstructure:"style_override" toml:"style_override" json:"style_override"`

	Horde      HordeConfig      `mapstructure:"horde" toml:"horde" json:"horde"`
	Generation GenerationConfig `mapstructure:"generation" toml:"generation" json:"generation"`
	Cache      CacheConfig      `mapstructure:"cache" toml:"cache" json:"cache"`
	Refill     RefillConfig     `mapstructure:"refill" toml:"refill" json:"refill"`
	Rotation   RotationConfig   `mapstructure:"rotation" toml:"rotation" json:"rotation"`
	Source     SourceConfig     `mapstructure:"source" toml:"source" json:"source"`
	Metrics    MetricsConfig    `mapstructure:"metrics" toml:"metrics" json:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging" toml:"logging" json:"logging"`
}

// Orientation mirrors entity.Orientation for config files.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// SourceMode selects where new images come from.
type SourceMode string

const (
	SourceModeGenerate SourceMode = "generate"
	SourceModeManifest SourceMode = "manifest"
)

// HordeConfig points at the remote generation API.
type HordeConfig struct {
	BaseURL string `mapstructure:"base_url" toml:"base_url" json:"base_url"`
	// APIKey defaults to the anonymous key, which gets the lowest queue priority.
	APIKey string `mapstructure:"api_key" toml:"api_key" json:"api_key"`
	// ClientAgent defaults to ealain:<version>:<repository>.
	ClientAgent string `mapstructure:"client_agent" toml:"client_agent" json:"client_agent"`
	TimeoutMs   int    `mapstructure:"timeout_ms" toml:"timeout_ms" json:"timeout_ms" jsonschema:"minimum=1"`
}

// Timeout returns the per-request timeout.
func (h HordeConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutMs) * time.Millisecond
}

// GenerationConfig is the request template. Prompt may reference {style} and
// {colors}, filled at random from Styles and Palettes.
type GenerationConfig struct {
	Prompt          string   `mapstructure:"prompt" toml:"prompt" json:"prompt"`
	Styles          []string `mapstructure:"styles" toml:"styles" json:"styles"`
	Palettes        []string `mapstructure:"palettes" toml:"palettes" json:"palettes"`
	NegativePrompts []string `mapstructure:"negative_prompts" toml:"negative_prompts" json:"negative_prompts"`
	Models          []string `mapstructure:"models" toml:"models" json:"models"`
	Count           int      `mapstructure:"count" toml:"count" json:"count" jsonschema:"minimum=1,maximum=20"`
	LongEdge        int      `mapstructure:"long_edge" toml:"long_edge" json:"long_edge" jsonschema:"minimum=64"`
	ShortEdge       int      `mapstructure:"short_edge" toml:"short_edge" json:"short_edge" jsonschema:"minimum=64"`
	Steps           int      `mapstructure:"steps" toml:"steps" json:"steps" jsonschema:"minimum=1,maximum=500"`
	CFGScale        float64  `mapstructure:"cfg_scale" toml:"cfg_scale" json:"cfg_scale"`
	Sampler         string   `mapstructure:"sampler" toml:"sampler" json:"sampler"`
	Karras          bool     `mapstructure:"karras" toml:"karras" json:"karras"`
	PostProcessing  []string `mapstructure:"post_processing" toml:"post_processing" json:"post_processing"`

	NSFW              bool `mapstructure:"nsfw" toml:"nsfw" json:"nsfw"`
	CensorNSFW        bool `mapstructure:"censor_nsfw" toml:"censor_nsfw" json:"censor_nsfw"`
	TrustedWorkers    bool `mapstructure:"trusted_workers" toml:"trusted_workers" json:"trusted_workers"`
	SlowWorkers       bool `mapstructure:"slow_workers" toml:"slow_workers" json:"slow_workers"`
	Shared            bool `mapstructure:"shared" toml:"shared" json:"shared"`
	R2                bool `mapstructure:"r2" toml:"r2" json:"r2"`
	ReplacementFilter bool `mapstructure:"replacement_filter" toml:"replacement_filter" json:"replacement_filter"`
}

// CacheConfig controls the on-disk image pool.
type CacheConfig struct {
	// Dir defaults to $XDG_CACHE_HOME/ealain/images.
	Dir              string `mapstructure:"dir" toml:"dir" json:"dir"`
	HighWater        int    `mapstructure:"high_water" toml:"high_water" json:"high_water" jsonschema:"minimum=2"`
	PruneBatch       int    `mapstructure:"prune_batch" toml:"prune_batch" json:"prune_batch" jsonschema:"minimum=1"`
	PruneIntervalMin int    `mapstructure:"prune_interval_min" toml:"prune_interval_min" json:"prune_interval_min" jsonschema:"minimum=1"`
}

// PruneInterval returns the delay between two prune passes.
func (c CacheConfig) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMin) * time.Minute
}

// RefillConfig controls pacing and the failure budget.
type RefillConfig struct {
	Target             int     `mapstructure:"target" toml:"target" json:"target" jsonschema:"minimum=2"`
	LowWater           int     `mapstructure:"low_water" toml:"low_water" json:"low_water" jsonschema:"minimum=1"`
	PreSubmitHoldMs    int     `mapstructure:"pre_submit_hold_ms" toml:"pre_submit_hold_ms" json:"pre_submit_hold_ms"`
	PostCompleteHoldMs int     `mapstructure:"post_complete_hold_ms" toml:"post_complete_hold_ms" json:"post_complete_hold_ms"`
	MaxFailures        int     `mapstructure:"max_failures" toml:"max_failures" json:"max_failures" jsonschema:"minimum=1"`
	RateLimitPenalty   float64 `mapstructure:"rate_limit_penalty" toml:"rate_limit_penalty" json:"rate_limit_penalty"`
	PollIntervalMs     int     `mapstructure:"poll_interval_ms" toml:"poll_interval_ms" json:"poll_interval_ms" jsonschema:"minimum=1000"`
	MaxPollFailures    int     `mapstructure:"max_poll_failures" toml:"max_poll_failures" json:"max_poll_failures" jsonschema:"minimum=1"`
}

// RotationConfig controls the crossfade timing.
type RotationConfig struct {
	FadeMs  int `mapstructure:"fade_ms" toml:"fade_ms" json:"fade_ms" jsonschema:"minimum=1"`
	DwellMs int `mapstructure:"dwell_ms" toml:"dwell_ms" json:"dwell_ms" jsonschema:"minimum=1"`
	// TickMs is the resolution of the engine loop.
	TickMs int `mapstructure:"tick_ms" toml:"tick_ms" json:"tick_ms" jsonschema:"minimum=10"`
}

// SourceConfig selects generation or a published manifest of image URLs.
type SourceConfig struct {
	Mode SourceMode `mapstructure:"mode" toml:"mode" json:"mode" jsonschema:"enum=generate,enum=manifest"`
	// ManifestURL is an http(s) URL or s3://bucket/key.
	ManifestURL        string `mapstructure:"manifest_url" toml:"manifest_url" json:"manifest_url"`
	ManifestRefreshMin int    `mapstructure:"manifest_refresh_min" toml:"manifest_refresh_min" json:"manifest_refresh_min" jsonschema:"minimum=1"`

	S3Region          string `mapstructure:"s3_region" toml:"s3_region" json:"s3_region"`
	S3Endpoint        string `mapstructure:"s3_endpoint" toml:"s3_endpoint" json:"s3_endpoint"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id" toml:"s3_access_key_id" json:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key" toml:"s3_secret_access_key" json:"s3_secret_access_key"`
	S3UsePathStyle    bool   `mapstructure:"s3_use_path_style" toml:"s3_use_path_style" json:"s3_use_path_style"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" toml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level         string `mapstructure:"level" toml:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Format        string `mapstructure:"format" toml:"format" json:"format" jsonschema:"enum=console,enum=json"`
	EnableFileLog bool   `mapstructure:"enable_file_log" toml:"enable_file_log" json:"enable_file_log"`
	// LogDir defaults to $XDG_STATE_HOME/ealain/logs.
	LogDir     string `mapstructure:"log_dir" toml:"log_dir" json:"log_dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" toml:"compress" json:"compress"`
}
