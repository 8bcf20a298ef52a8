package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/ealain/internal/cli"
	"github.com/bnema/ealain/internal/cli/model"
	"github.com/bnema/ealain/internal/engine"
	"github.com/bnema/ealain/internal/infrastructure/config"
	"github.com/bnema/ealain/internal/infrastructure/metrics"
	"github.com/bnema/ealain/internal/logging"
)

const uiSubscriberBuffer = 64

var (
	runOrientation string
	runStyle       string
	runTUI         bool
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the slideshow engine",
	Long: `Start the slideshow engine.

The engine keeps the image pool of the current partition topped up, rotates
through it with a crossfade and prunes old images in the background.

Without --tui, engine events are written to the log. With --tui a status
screen shows the current image and pool size; press n to skip to the next
image and o to switch orientation.

Editing style_override in the config file while the engine runs switches to
that style's pool, unless --style was given on the command line.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOrientation, "orientation", "o", "", "landscape or portrait (default from config)")
	runCmd.Flags().StringVarP(&runStyle, "style", "s", "", "remote style identifier (default from config)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "show the interactive status screen")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default from config)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	if runTUI {
		app.DetachConsole()
	}

	ctx, stop := signal.NotifyContext(app.Ctx(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logging.FromContext(ctx)

	partition, err := app.Partition(runOrientation, runStyle)
	if err != nil {
		return err
	}
	store, err := app.NewStore()
	if err != nil {
		return err
	}

	bus := engine.NewBus()
	bus.Observe(metrics.NewRecorder())
	defer bus.Close()

	events, err := bus.Subscribe("cli", uiSubscriberBuffer)
	if err != nil {
		return err
	}

	eng, err := app.NewEngine(ctx, store, cli.EngineOptions{Partition: partition, Events: bus})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if !cmd.Flags().Changed("style") {
		app.Manager.OnConfigChange(func(c *config.Config) {
			if err := eng.SetStyle(ctx, c.StyleOverride); err != nil && !errors.Is(err, engine.ErrNotRunning) {
				log.Warn().Err(err).Str("style", c.StyleOverride).Msg("failed to apply style from config")
			}
		})
		if err := app.Manager.Watch(); err != nil {
			log.Warn().Err(err).Msg("config hot reload disabled")
		}
	}

	metricsAddr := runMetricsAddr
	if metricsAddr == "" {
		metricsAddr = app.Config.Metrics.ListenAddr
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		// Closing the bus ends the event consumers once the engine is done.
		defer bus.Close()
		return eng.Run(gctx)
	})
	if metricsAddr != "" {
		group.Go(func() error {
			return metrics.Serve(gctx, metricsAddr)
		})
	}
	group.Go(func() error {
		if !runTUI {
			cli.LogEvents(gctx, events)
			return nil
		}
		defer stop()
		m := model.NewStatusModel(gctx, app.Theme, events, eng, partition)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if logFile := app.LogFile(); logFile != "" && runTUI {
		fmt.Fprintln(cmd.OutOrStdout(), app.Theme.Subtle.Render("log: "+logFile))
	}
	return nil
}
