package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/ealain/internal/cli/styles"
	"github.com/bnema/ealain/internal/domain/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		t := styles.NewTheme()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, t.Title.Render("ealain")+" "+t.Highlight.Render(buildInfo.Version))
		fmt.Fprintln(out, t.KeyValue("commit", buildInfo.Commit))
		fmt.Fprintln(out, t.KeyValue("built", buildInfo.BuildDate))
		fmt.Fprintln(out, t.KeyValue("go", buildInfo.GoVersion))
		fmt.Fprintln(out, t.Subtle.Render(build.RepoURL()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
