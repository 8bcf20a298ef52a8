package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/ealain/internal/application/usecase"
	"github.com/bnema/ealain/internal/domain/entity"
	"github.com/bnema/ealain/internal/infrastructure/fetcher"
)

var (
	generateOrientation string
	generateStyle       string
	generateCount       int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one batch of images into the pool",
	Long: `Submit a single generation request, wait for it and store the results.

The request is built from the [generation] section of the config exactly as
the engine would build it. Progress is printed while the job waits in the
queue.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOrientation, "orientation", "o", "", "landscape or portrait (default from config)")
	generateCmd.Flags().StringVarP(&generateStyle, "style", "s", "", "remote style identifier (default from config)")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 0, "images to request (default from config)")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	theme := app.Theme
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(app.Ctx(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	partition, err := app.Partition(generateOrientation, generateStyle)
	if err != nil {
		return err
	}
	store, err := app.NewStore()
	if err != nil {
		return err
	}

	req := app.NewRequestBuilder().Build(partition)
	if generateCount > 0 {
		req.Count = generateCount
	}

	fmt.Fprintln(out, theme.Title.Render("Generating")+" "+theme.Highlight.Render(partition.String()))
	fmt.Fprintln(out, theme.KeyValue("prompt", req.Prompt))

	job := usecase.NewGenerationJob(
		app.NewGenerationClient(),
		fetcher.New(),
		store,
		partition,
		req,
		app.JobConfig(),
		func(status string) {
			fmt.Fprintln(out, theme.Subtle.Render("  "+status))
		},
	)

	outcome := job.Run(ctx)
	switch outcome.State {
	case entity.JobStateCompleted:
		fmt.Fprintln(out, theme.Success.Render(fmt.Sprintf("Saved %d image(s) in %s", len(outcome.Saved), outcome.Duration.Round(time.Second))))
		for _, e := range outcome.Saved {
			fmt.Fprintln(out, "  "+e.Path)
		}
		if outcome.Censored > 0 {
			fmt.Fprintln(out, theme.Warning.Render(fmt.Sprintf("%d image(s) were censored and discarded", outcome.Censored)))
		}
		return nil
	case entity.JobStateAbandoned:
		if ctx.Err() != nil {
			fmt.Fprintln(out, theme.Warning.Render("Cancelled"))
			return nil
		}
	}

	if outcome.Err != nil {
		return fmt.Errorf("generation %s: %w", outcome.State, outcome.Err)
	}
	return fmt.Errorf("generation %s", outcome.State)
}
