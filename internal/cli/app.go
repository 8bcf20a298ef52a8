// Package cli wires the engine and its collaborators for the command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/ealain/internal/cli/styles"
	"github.com/bnema/ealain/internal/domain/build"
	"github.com/bnema/ealain/internal/infrastructure/config"
	"github.com/bnema/ealain/internal/logging"
)

// App holds CLI dependencies.
type App struct {
	Config    *config.Config
	Manager   *config.Manager
	Theme     *styles.Theme
	BuildInfo build.Info

	ctx     context.Context
	rotator *logging.LogRotator
}

// NewApp loads the configuration and sets up logging.
func NewApp() (*App, error) {
	mgr, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	app := &App{
		Config:  cfg,
		Manager: mgr,
		Theme:   styles.NewTheme(),
	}

	if cfg.Logging.EnableFileLog {
		logDir, err := cfg.LogDir()
		if err != nil {
			return nil, fmt.Errorf("resolve log dir: %w", err)
		}
		app.rotator, err = logging.NewLogRotator(logging.RotatorConfig{
			Dir:        logDir,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
	}

	app.setLogger(os.Stderr)
	return app, nil
}

// newLoggerConfig maps the logging section onto the logger. The level was
// already validated when the config loaded.
func newLoggerConfig(cfg config.LoggingConfig, out io.Writer) logging.Config {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return logging.Config{
		Level:      level,
		Format:     cfg.Format,
		TimeFormat: time.TimeOnly,
		Output:     out,
	}
}

func (a *App) setLogger(console io.Writer) {
	var extra []io.Writer
	if a.rotator != nil {
		extra = append(extra, a.rotator)
	}
	logger := logging.New(newLoggerConfig(a.Config.Logging, console), extra...)
	a.ctx = logging.WithContext(context.Background(), logger)
}

// DetachConsole stops console logging so a full-screen UI owns the terminal.
// The file log, when enabled, keeps receiving everything.
func (a *App) DetachConsole() {
	a.setLogger(io.Discard)
}

// LogFile returns the active log file path, or "" when file logging is off.
func (a *App) LogFile() string {
	if a.rotator == nil {
		return ""
	}
	return a.rotator.Path()
}

// Ctx returns the application context with logger.
func (a *App) Ctx() context.Context {
	return a.ctx
}

// Close releases all resources.
func (a *App) Close() error {
	if a.rotator != nil {
		return a.rotator.Close()
	}
	return nil
}
