package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config         *Config
	viper          *viper.Viper
	configDir      string
	mu             sync.RWMutex
	callbacks      []func(*Config)
	watching       bool
	skipNextReload bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config directory: %w\nCheck XDG_CONFIG_HOME environment variable or HOME directory", err)
	}
	v.AddConfigPath(configDir)

	// EALAIN_REFILL_TARGET, EALAIN_HORDE_API_KEY, ...
	v.SetEnvPrefix("EALAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short names for the variables people actually set by hand.
	bindings := map[string]string{
		"horde.api_key":  "EALAIN_API_KEY",
		"logging.level":  "EALAIN_LOG_LEVEL",
		"logging.format": "EALAIN_LOG_FORMAT",
		"style_override": "EALAIN_STYLE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "EALAIN_"+strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	return &Manager{
		viper:     v,
		configDir: configDir,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
// A default config file is written on first run.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	m.setDefaults()

	if err := m.readConfigFile(); err != nil {
		return err
	}

	config, err := m.unmarshalConfig()
	if err != nil {
		return err
	}
	normalizeConfig(config)

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) readConfigFile() error {
	if err := m.viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			configFile := m.viper.ConfigFileUsed()
			if configFile == "" {
				configFile = filepath.Join(m.configDir, "config.toml")
			}
			return fmt.Errorf("failed to read config file at %s: %w\nCheck the file format (must be valid TOML) and permissions", configFile, err)
		}

		if createErr := m.createDefaultConfig(); createErr != nil {
			return fmt.Errorf(
				"failed to create default config at %s: %w\nTry creating the directory manually or check permissions",
				m.configDir,
				createErr,
			)
		}
		if rereadErr := m.viper.ReadInConfig(); rereadErr != nil {
			return fmt.Errorf(
				"failed to read newly created config file: %w\nThe config file was created but couldn't be read. Please check the file format",
				rereadErr,
			)
		}
	}
	return nil
}

func (m *Manager) unmarshalConfig() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf(
			"failed to parse config file at %s: %w\nCheck for syntax errors, invalid values, or type mismatches",
			m.viper.ConfigFileUsed(),
			err,
		)
	}
	return config, nil
}

func normalizeConfig(config *Config) {
	switch Orientation(strings.ToLower(string(config.Orientation))) {
	case OrientationPortrait:
		config.Orientation = OrientationPortrait
	default:
		config.Orientation = OrientationLandscape
	}

	switch SourceMode(strings.ToLower(string(config.Source.Mode))) {
	case SourceModeManifest:
		config.Source.Mode = SourceModeManifest
	default:
		config.Source.Mode = SourceModeGenerate
	}

	config.StyleOverride = strings.TrimSpace(config.StyleOverride)
	config.Horde.BaseURL = strings.TrimRight(strings.TrimSpace(config.Horde.BaseURL), "/")
	config.Source.ManifestURL = strings.TrimSpace(config.Source.ManifestURL)
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// Save validates cfg and writes it to the config file.
func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	saved := *cfg
	normalizeConfig(&saved)
	if err := validateConfig(&saved); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	path := m.viper.ConfigFileUsed()
	if path == "" {
		path = filepath.Join(m.configDir, "config.toml")
	}
	if err := WriteConfigOrdered(&saved, path); err != nil {
		return err
	}

	m.config = &saved
	if m.watching {
		// The watcher resyncs viper when the write event arrives.
		m.skipNextReload = true
		return nil
	}
	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reread config after save: %w", err)
	}
	return nil
}

// SaveStyleOverride persists a style override. An empty style clears it.
func (m *Manager) SaveStyleOverride(style string) error {
	cfg := m.Get()
	cfg.StyleOverride = style
	return m.Save(cfg)
}

// GetConfigFile returns the path to the configuration file being used.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// createDefaultConfig writes the default configuration and its JSON schema.
func (m *Manager) createDefaultConfig() error {
	configFile := filepath.Join(m.configDir, "config.toml")
	if err := WriteConfigOrdered(DefaultConfig(), configFile); err != nil {
		return err
	}
	m.viper.SetConfigFile(configFile)

	// The schema only helps editors; a failure here must not block startup.
	_ = GenerateSchemaFile(filepath.Join(m.configDir, schemaFileName))
	return nil
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("orientation", string(defaults.Orientation))
	m.viper.SetDefault("style_override", defaults.StyleOverride)

	m.setHordeDefaults(defaults)
	m.setGenerationDefaults(defaults)
	m.setCacheDefaults(defaults)
	m.setRefillDefaults(defaults)
	m.setRotationDefaults(defaults)
	m.setSourceDefaults(defaults)
	m.setMetricsDefaults(defaults)
	m.setLoggingDefaults(defaults)
}

func (m *Manager) setHordeDefaults(defaults *Config) {
	m.viper.SetDefault("horde.base_url", defaults.Horde.BaseURL)
	m.viper.SetDefault("horde.api_key", defaults.Horde.APIKey)
	m.viper.SetDefault("horde.client_agent", defaults.Horde.ClientAgent)
	m.viper.SetDefault("horde.timeout_ms", defaults.Horde.TimeoutMs)
}

func (m *Manager) setGenerationDefaults(defaults *Config) {
	g := defaults.Generation
	m.viper.SetDefault("generation.prompt", g.Prompt)
	m.viper.SetDefault("generation.styles", g.Styles)
	m.viper.SetDefault("generation.palettes", g.Palettes)
	m.viper.SetDefault("generation.negative_prompts", g.NegativePrompts)
	m.viper.SetDefault("generation.models", g.Models)
	m.viper.SetDefault("generation.count", g.Count)
	m.viper.SetDefault("generation.long_edge", g.LongEdge)
	m.viper.SetDefault("generation.short_edge", g.ShortEdge)
	m.viper.SetDefault("generation.steps", g.Steps)
	m.viper.SetDefault("generation.cfg_scale", g.CFGScale)
	m.viper.SetDefault("generation.sampler", g.Sampler)
	m.viper.SetDefault("generation.karras", g.Karras)
	m.viper.SetDefault("generation.post_processing", g.PostProcessing)
	m.viper.SetDefault("generation.nsfw", g.NSFW)
	m.viper.SetDefault("generation.censor_nsfw", g.CensorNSFW)
	m.viper.SetDefault("generation.trusted_workers", g.TrustedWorkers)
	m.viper.SetDefault("generation.slow_workers", g.SlowWorkers)
	m.viper.SetDefault("generation.shared", g.Shared)
	m.viper.SetDefault("generation.r2", g.R2)
	m.viper.SetDefault("generation.replacement_filter", g.ReplacementFilter)
}

func (m *Manager) setCacheDefaults(defaults *Config) {
	m.viper.SetDefault("cache.dir", defaults.Cache.Dir)
	m.viper.SetDefault("cache.high_water", defaults.Cache.HighWater)
	m.viper.SetDefault("cache.prune_batch", defaults.Cache.PruneBatch)
	m.viper.SetDefault("cache.prune_interval_min", defaults.Cache.PruneIntervalMin)
}

func (m *Manager) setRefillDefaults(defaults *Config) {
	r := defaults.Refill
	m.viper.SetDefault("refill.target", r.Target)
	m.viper.SetDefault("refill.low_water", r.LowWater)
	m.viper.SetDefault("refill.pre_submit_hold_ms", r.PreSubmitHoldMs)
	m.viper.SetDefault("refill.post_complete_hold_ms", r.PostCompleteHoldMs)
	m.viper.SetDefault("refill.max_failures", r.MaxFailures)
	m.viper.SetDefault("refill.rate_limit_penalty", r.RateLimitPenalty)
	m.viper.SetDefault("refill.poll_interval_ms", r.PollIntervalMs)
	m.viper.SetDefault("refill.max_poll_failures", r.MaxPollFailures)
}

func (m *Manager) setRotationDefaults(defaults *Config) {
	m.viper.SetDefault("rotation.fade_ms", defaults.Rotation.FadeMs)
	m.viper.SetDefault("rotation.dwell_ms", defaults.Rotation.DwellMs)
	m.viper.SetDefault("rotation.tick_ms", defaults.Rotation.TickMs)
}

func (m *Manager) setSourceDefaults(defaults *Config) {
	s := defaults.Source
	m.viper.SetDefault("source.mode", string(s.Mode))
	m.viper.SetDefault("source.manifest_url", s.ManifestURL)
	m.viper.SetDefault("source.manifest_refresh_min", s.ManifestRefreshMin)
	m.viper.SetDefault("source.s3_region", s.S3Region)
	m.viper.SetDefault("source.s3_endpoint", s.S3Endpoint)
	m.viper.SetDefault("source.s3_access_key_id", s.S3AccessKeyID)
	m.viper.SetDefault("source.s3_secret_access_key", s.S3SecretAccessKey)
	m.viper.SetDefault("source.s3_use_path_style", s.S3UsePathStyle)
}

func (m *Manager) setMetricsDefaults(defaults *Config) {
	m.viper.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)
}

func (m *Manager) setLoggingDefaults(defaults *Config) {
	l := defaults.Logging
	m.viper.SetDefault("logging.level", l.Level)
	m.viper.SetDefault("logging.format", l.Format)
	m.viper.SetDefault("logging.enable_file_log", l.EnableFileLog)
	m.viper.SetDefault("logging.log_dir", l.LogDir)
	m.viper.SetDefault("logging.max_size_mb", l.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", l.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", l.MaxAgeDays)
	m.viper.SetDefault("logging.compress", l.Compress)
}

// ImageCacheDir returns Cache.Dir or the XDG default.
func (c *Config) ImageCacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return GetImageCacheDir()
}

// LogDir returns Logging.LogDir or the XDG default.
func (c *Config) LogDir() (string, error) {
	if c.Logging.LogDir != "" {
		return c.Logging.LogDir, nil
	}
	return GetLogDir()
}
