// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/minipack/minipack/internal/config"
)

// newConfigCommand creates the `minipack config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect minipack configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show [key=value...]",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration: defaults, the config file and any
key=value overrides merged and validated. The output is itself a valid
config file.`,
		Args: validateOverrides,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := config.Format(format)
			if !slices.Contains(config.Formats(), f) {
				return fmt.Errorf("%w %q (want one of %v)", config.ErrUnknownFormat, format, config.Formats())
			}
			cfg, err := app.loadConfig(cmd.Context(), args)
			if err != nil {
				return fail(cmd, app, err)
			}
			return config.Write(app.stdout, cfg, f)
		},
	}
	showCmd.Flags().StringVarP(&format, "format", "f", string(config.FormatCUE), "output format: cue, json or toml")

	cfgCmd.AddCommand(showCmd)
	return cfgCmd
}
