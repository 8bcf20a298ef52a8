package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/ealain/internal/infrastructure/config"
)

var configSchemaWrite bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and edit the configuration file.

The file lives in $XDG_CONFIG_HOME/ealain/config.toml and is created with
defaults on first use. Environment variables prefixed with EALAIN_ override it,
for example EALAIN_API_KEY or EALAIN_REFILL_TARGET.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after defaults and environment overrides are applied. Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configSetStyleCmd = &cobra.Command{
	Use:   "set-style <style>",
	Short: "Use a remote style for new images",
	Long: `Save a style override. New images for that style go to their own pool.
A running engine picks the change up without restarting.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetStyle,
}

var configClearStyleCmd = &cobra.Command{
	Use:   "clear-style",
	Short: "Go back to the configured models",
	Args:  cobra.NoArgs,
	RunE:  runConfigClearStyle,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the config file",
	Long: `Print the JSON schema of the config file, for editor completion.
With --write, store it next to the config file instead.`,
	Args: cobra.NoArgs,
	RunE: runConfigSchema,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetStyleCmd)
	configCmd.AddCommand(configClearStyleCmd)
	configCmd.AddCommand(configSchemaCmd)

	configSchemaCmd.Flags().BoolVarP(&configSchemaWrite, "write", "w", false, "write the schema file next to the config")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	content, err := config.EncodeTOML(app.Config.Redacted())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.Theme.Subtle.Render("# "+app.Manager.GetConfigFile()))
	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.Manager.GetConfigFile())
	return nil
}

func runConfigSetStyle(cmd *cobra.Command, args []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	if err := app.Manager.SaveStyleOverride(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.Theme.Success.Render("Style override set to ")+app.Theme.Highlight.Render(args[0]))
	return nil
}

func runConfigClearStyle(cmd *cobra.Command, _ []string) error {
	app, err := requireApp()
	if err != nil {
		return err
	}
	if err := app.Manager.SaveStyleOverride(""); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.Theme.Success.Render("Style override cleared"))
	return nil
}

// runConfigSchema works without loading the config so it can help fix a
// broken file.
func runConfigSchema(cmd *cobra.Command, _ []string) error {
	if !configSchemaWrite {
		return config.WriteSchema(cmd.OutOrStdout())
	}

	path, err := config.SchemaPath()
	if err != nil {
		return err
	}
	if err := config.EnsureDirectories(); err != nil {
		return err
	}
	if err := config.GenerateSchemaFile(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
