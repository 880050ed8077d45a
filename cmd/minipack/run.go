// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/minipack/minipack/internal/jsrun"
)

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run <asset>",
		Short: "Run a bundle in the embedded JavaScript engine",
		Long: `Run a bundle in the embedded JavaScript engine.

Only console is provided; console output goes to stdout. The command fails
when the bundle throws.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := jsrun.New(app.stdout)
			if err := session.RunFile(cmd.Context(), app.fs, args[0]); err != nil {
				return fail(cmd, app, actionable("run bundle", err))
			}
			return nil
		},
	}
}
