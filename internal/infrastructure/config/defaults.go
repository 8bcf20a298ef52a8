package config

// Default configuration constants
const (
	// Horde defaults
	defaultHordeBaseURL   = "https://aihorde.net/api/v2"
	defaultHordeAPIKey    = "0000000000" // anonymous
	defaultHordeTimeoutMs = 5000

	// Generation defaults
	defaultPrompt    = "Abstract {style} art {colors}"
	defaultCount     = 2
	defaultLongEdge  = 1024
	defaultShortEdge = 576
	defaultSteps     = 15
	defaultCFGScale  = 5.0
	defaultSampler   = "k_euler_a"

	// Cache defaults
	defaultHighWater        = 100
	defaultPruneBatch       = 2
	defaultPruneIntervalMin = 33

	// Refill defaults
	defaultTarget           = 100
	defaultLowWater         = 2
	defaultHoldMs           = 5000
	defaultMaxFailures      = 5
	defaultRateLimitPenalty = 0.5
	defaultPollIntervalMs   = 3000
	defaultMaxPollFailures  = 5

	// Rotation defaults
	defaultFadeMs  = 5000
	defaultDwellMs = 15000
	defaultTickMs  = 250

	// Source defaults
	defaultManifestRefreshMin = 60
	defaultS3Region           = "us-east-1"

	// Logging defaults
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultMaxLogSizeMB  = 10
	defaultMaxLogBackups = 3
	defaultMaxLogAgeDays = 7
)

var (
	defaultStyles = []string{"bauhaus", "geometric", "tachisme", "de stijl"}

	defaultPalettes = []string{
		"white, black, red, yellow",
		"white, black, purple, blue, green",
		"white, black, yellow, green",
		"white, black, red",
		"white, black, orange",
		"white, black, yellow",
		"white, black, green",
		"white, black, blue",
		"white, black, indigo",
		"white, black, violet",
		"cool colors only",
		"warm colors only",
		"grayscale",
		"black and white",
		"three colors only",
		"two colors only",
	}

	defaultNegativePrompts = []string{
		"frame, framing, photo, realistic, text",
		"frame, framing, photo, realistic, text, portrait, face, person, people, eyes, nose, mouth",
	}

	defaultModels = []string{"Deliberate", "Dreamshaper"}
)

// DefaultConfig returns the default configuration.
// Cache.Dir and Logging.LogDir are left empty and resolved from XDG at load time.
func DefaultConfig() *Config {
	return &Config{
		Orientation: OrientationLandscape,
		Horde: HordeConfig{
			BaseURL:   defaultHordeBaseURL,
			APIKey:    defaultHordeAPIKey,
			TimeoutMs: defaultHordeTimeoutMs,
		},
		Generation: GenerationConfig{
			Prompt:          defaultPrompt,
			Styles:          append([]string(nil), defaultStyles...),
			Palettes:        append([]string(nil), defaultPalettes...),
			NegativePrompts: append([]string(nil), defaultNegativePrompts...),
			Models:          append([]string(nil), defaultModels...),
			Count:           defaultCount,
			LongEdge:        defaultLongEdge,
			ShortEdge:       defaultShortEdge,
			Steps:           defaultSteps,
			CFGScale:        defaultCFGScale,
			Sampler:         defaultSampler,
			Karras:          true,
			PostProcessing:  []string{},
			CensorNSFW:      true,
			SlowWorkers:     true,
			R2:              true,
		},
		Cache: CacheConfig{
			HighWater:        defaultHighWater,
			PruneBatch:       defaultPruneBatch,
			PruneIntervalMin: defaultPruneIntervalMin,
		},
		Refill: RefillConfig{
			Target:             defaultTarget,
			LowWater:           defaultLowWater,
			PreSubmitHoldMs:    defaultHoldMs,
			PostCompleteHoldMs: defaultHoldMs,
			MaxFailures:        defaultMaxFailures,
			RateLimitPenalty:   defaultRateLimitPenalty,
			PollIntervalMs:     defaultPollIntervalMs,
			MaxPollFailures:    defaultMaxPollFailures,
		},
		Rotation: RotationConfig{
			FadeMs:  defaultFadeMs,
			DwellMs: defaultDwellMs,
			TickMs:  defaultTickMs,
		},
		Source: SourceConfig{
			Mode:               SourceModeGenerate,
			ManifestRefreshMin: defaultManifestRefreshMin,
			S3Region:           defaultS3Region,
		},
		Logging: LoggingConfig{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultMaxLogSizeMB,
			MaxBackups: defaultMaxLogBackups,
			MaxAgeDays: defaultMaxLogAgeDays,
			Compress:   true,
		},
	}
}

// Redacted returns a copy safe to print: secrets other than the public
// anonymous key are masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Horde.APIKey != "" && out.Horde.APIKey != defaultHordeAPIKey {
		out.Horde.APIKey = mask(out.Horde.APIKey)
	}
	if out.Source.S3SecretAccessKey != "" {
		out.Source.S3SecretAccessKey = mask(out.Source.S3SecretAccessKey)
	}
	return &out
}

func mask(secret string) string {
	const visible = 4
	if len(secret) <= visible {
		return "****"
	}
	return "****" + secret[len(secret)-visible:]
}
