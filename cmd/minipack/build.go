// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/minipack/minipack/internal/compiler"
	"github.com/minipack/minipack/internal/config"
	"github.com/minipack/minipack/internal/issue"
)

type buildFlagValues struct {
	watch     bool
	json      bool
	statsFile string
}

func newBuildCommand(app *App) *cobra.Command {
	flags := &buildFlagValues{}
	buildCmd := &cobra.Command{
		Use:   "build [key=value...]",
		Short: "Bundle the configured entries",
		Long: `Bundle the configured entries into one file per entry.

Arguments of the form key=value override the configuration file. Dotted keys
address nested settings and comma separated values fill lists:

  minipack build mode=production output.path=build
  minipack build entry.admin=./src/admin.js resolve.extensions=.js,.json`,
		Args: validateOverrides,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, flags, args)
		},
	}

	buildCmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild whenever a bundled file changes")
	buildCmd.Flags().BoolVar(&flags.json, "json", false, "print build stats as JSON instead of a summary")
	buildCmd.Flags().StringVar(&flags.statsFile, "stats-file", "", "also write build stats as JSON to this file")
	return buildCmd
}

// validateOverrides rejects positional arguments that are not key=value.
func validateOverrides(_ *cobra.Command, args []string) error {
	for _, arg := range args {
		key, _, ok := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !ok || key == "" {
			return fmt.Errorf("%w: %q is not key=value", config.ErrInvalidOverride, arg)
		}
	}
	return nil
}

func runBuild(cmd *cobra.Command, app *App, flags *buildFlagValues, args []string) error {
	ctx := cmd.Context()
	cfg, err := app.loadConfig(ctx, args)
	if err != nil {
		return fail(cmd, app, err)
	}

	c, err := compiler.New(cfg, compiler.WithFs(app.fs), compiler.WithLogger(app.logger()))
	if err != nil {
		return fail(cmd, app, actionable("prepare build", err))
	}

	if flags.watch {
		fmt.Fprintf(app.stdout, "%s Watching for changes (Ctrl+C to stop)...\n", HighlightStyle.Render("→"))
		err := c.Watch(ctx, func(stats *compiler.Stats, err error) {
			if err != nil {
				_, styled := classifyError(actionable("build bundle", err), app.verbose)
				renderServiceError(app.stderr, newServiceError(err, 0, styled), false)
				return
			}
			if reportErr := app.reportBuild(cfg, stats, flags); reportErr != nil {
				fmt.Fprintf(app.stderr, "%s %v\n", WarningStyle.Render("!"), reportErr)
			}
		})
		if err != nil {
			return fail(cmd, app, issue.NewErrorContext().
				WithOperation("watch files").
				WithIssue(issue.WatchFailedId).
				Wrap(err).
				BuildError())
		}
		return nil
	}

	stats, err := c.Run(ctx)
	if err != nil {
		return fail(cmd, app, actionable("build bundle", err))
	}
	return app.reportBuild(cfg, stats, flags)
}

// reportBuild prints the summary or the JSON stats and writes the stats
// file when requested.
func (a *App) reportBuild(cfg *config.Config, stats *compiler.Stats, flags *buildFlagValues) error {
	if flags.statsFile != "" {
		data, err := stats.JSON(compiler.AllStats)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(a.fs, flags.statsFile, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write stats file: %w", err)
		}
	}

	if flags.json {
		data, err := stats.JSON(compiler.AllStats)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	for _, asset := range stats.Assets {
		name := asset.Path
		if rel, err := filepath.Rel(cfg.Context, asset.Path); err == nil {
			name = filepath.ToSlash(rel)
		}
		fmt.Fprintf(a.stdout, "%s %s %s\n", SuccessStyle.Render("✓"), name, SubtitleStyle.Render(formatSize(asset.Size)))
	}
	fmt.Fprintf(a.stdout, "%s %d modules, %d chunks in %s\n",
		HighlightStyle.Render("→"), len(stats.Modules), len(stats.Chunks), stats.Duration.Round(time.Millisecond))
	return nil
}

func formatSize(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f kB", float64(n)/1000)
}
