package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/bnema/ealain/internal/cli/styles"
)

var (
	cacheOrientation string
	cacheStyle       string
	cacheImages      bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the image pool",
	Long: `Inspect and maintain the on-disk image pool.

Images are kept per partition: one directory per orientation, plus one per
orientation and remote style when a style override is used.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List partitions, or the images of one partition",
	Long: `Without flags, list every partition with its image count.
With --images, list the images of the selected partition, oldest first.`,
	Args: cobra.NoArgs,
	RunE: runCacheList,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove the oldest images of partitions above the high-water mark",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the image cache directory",
	Args:  cobra.NoArgs,
	RunE:  runCachePath,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cachePathCmd)

	cacheListCmd.Flags().BoolVarP(&cacheImages, "images", "i", false, "list the images of one partition")
	cacheListCmd.Flags().StringVarP(&cacheOrientation, "orientation", "o", "", "partition orientation (default from config)")
	cacheListCmd.Flags().StringVarP(&cacheStyle, "style", "s", "", "partition style (default from config)")
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	ctx := app.Ctx()
	out := cmd.OutOrStdout()

	store, err := app.NewStore()
	if err != nil {
		return err
	}

	if cacheImages {
		p, err := app.Partition(cacheOrientation, cacheStyle)
		if err != nil {
			return err
		}
		entries, err := store.List(ctx, p)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, app.Theme.Subtle.Render("No images in "+p.String()))
			return nil
		}
		rows := make([]table.Row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, styles.ImageRow(e))
		}
		fmt.Fprintln(out, app.Theme.Title.Render(p.String()))
		fmt.Fprintln(out, styles.RenderTable(app.Theme, styles.ImageTableColumns(), rows))
		return nil
	}

	partitions, err := store.Partitions(ctx)
	if err != nil {
		return err
	}
	if len(partitions) == 0 {
		fmt.Fprintln(out, app.Theme.Subtle.Render("The image cache is empty: "+store.Root()))
		return nil
	}

	rows := make([]table.Row, 0, len(partitions))
	for _, p := range partitions {
		entries, err := store.List(ctx, p)
		if err != nil {
			return err
		}
		rows = append(rows, styles.PoolRow(p, entries))
	}
	fmt.Fprintln(out, styles.RenderTable(app.Theme, styles.PoolTableColumns(), rows))
	return nil
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	ctx := app.Ctx()
	out := cmd.OutOrStdout()

	store, err := app.NewStore()
	if err != nil {
		return err
	}
	partitions, err := store.Partitions(ctx)
	if err != nil {
		return err
	}

	var total int
	for _, p := range partitions {
		removed, err := store.Prune(ctx, p)
		if err != nil {
			return fmt.Errorf("prune %s: %w", p, err)
		}
		total += len(removed)
		if len(removed) > 0 {
			fmt.Fprintln(out, app.Theme.KeyValue(p.String(), fmt.Sprintf("removed %d", len(removed))))
		}
	}

	if total == 0 {
		fmt.Fprintln(out, app.Theme.Subtle.Render(fmt.Sprintf("Nothing to prune (high-water mark is %d)", app.Config.Cache.HighWater)))
		return nil
	}
	fmt.Fprintln(out, app.Theme.Success.Render(fmt.Sprintf("Pruned %d image(s)", total)))
	return nil
}

func runCachePath(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	dir, err := app.Config.ImageCacheDir()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
