// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/minipack/minipack/internal/compiler"
	"github.com/minipack/minipack/internal/extract"
	"github.com/minipack/minipack/internal/graph"
	"github.com/minipack/minipack/internal/issue"
	"github.com/minipack/minipack/internal/jsrun"
	"github.com/minipack/minipack/internal/loader"
	"github.com/minipack/minipack/internal/resolve"
)

// ServiceError carries rendering information for the CLI layer: a styled
// message and an optional issue catalog entry printed after it.
// Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID, StyledMessage: styledMessage}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the styled message, then the issue help section.
// The catalog entry is only rendered when showIssue is set, so watch mode
// does not repeat a page of help on every failed pass.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, showIssue bool) {
	if svcErr == nil {
		return
	}
	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}
	if !showIssue || svcErr.IssueID == 0 {
		return
	}
	if entry := issue.Get(svcErr.IssueID); entry != nil {
		rendered, err := entry.Render(issueStyle(stderr))
		if err != nil {
			log.Warn("failed to render issue catalog entry", "issue", svcErr.IssueID, "err", err)
			return
		}
		fmt.Fprint(stderr, rendered)
	}
}

// issueStyle picks the glamour style: "dark" on a terminal, "notty" when
// stderr is redirected.
func issueStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "dark"
		}
	}
	return "notty"
}

// actionable wraps a pass or run failure with the operation, the file
// involved and suggestions matching its kind. Errors that already are
// actionable are returned unchanged.
func actionable(operation string, err error) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return err
	}

	ec := issue.NewErrorContext().WithOperation(operation).Wrap(err)
	var (
		resErr    *resolve.ResolutionError
		parseErr  *extract.ParseError
		transErr  *loader.TransformError
		readErr   *graph.ReadError
		writeErr  *compiler.WriteError
		scriptErr *jsrun.ScriptError
	)
	switch {
	case errors.As(err, &resErr):
		ec.WithResource(resErr.From).
			WithIssue(issue.ModuleNotFoundId).
			WithSuggestion(fmt.Sprintf("Create the module %q or fix the require call", resErr.Request)).
			WithSuggestion("Add its extension to resolve.extensions")
	case errors.As(err, &parseErr) && errors.Is(err, extract.ErrDynamicRequire):
		ec.WithResource(parseErr.Path).
			WithIssue(issue.DynamicRequireId).
			WithSuggestion("Pass a single string literal to require")
	case errors.As(err, &parseErr):
		ec.WithResource(parseErr.Path).
			WithIssue(issue.SyntaxErrorId).
			WithSuggestion("Add an esbuild rule for sources using import, JSX or TypeScript")
	case errors.As(err, &transErr):
		ec.WithResource(transErr.Path).
			WithIssue(issue.TransformFailedId).
			WithSuggestion(fmt.Sprintf("Check the %q transform in module.rules", transErr.Transform))
	case errors.As(err, &readErr):
		ec.WithResource(readErr.Path).
			WithIssue(issue.EntryNotFoundId).
			WithSuggestion("Entry paths are relative to context")
	case errors.As(err, &writeErr):
		ec.WithResource(writeErr.Path).
			WithIssue(issue.AssetWriteFailedId).
			WithSuggestion("Check that output.path is writable")
	case errors.As(err, &scriptErr):
		ec.WithResource(scriptErr.Name).
			WithIssue(issue.ScriptFailedId)
	case errors.Is(err, compiler.ErrUnknownPlugin), errors.Is(err, loader.ErrUnknownTransform):
		ec.WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion(fmt.Sprintf("Built-in plugins: %v", compiler.PluginNames()))
	}
	return ec.BuildError()
}

// classifyError maps an error to an issue catalog ID and a styled message.
func classifyError(err error, verbose bool) (issue.Id, string) {
	var id issue.Id
	if entry := issue.IssueOf(err); entry != nil {
		id = entry.Id()
	}
	return id, fmt.Sprintf("%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay uses ActionableError.Format when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// fail renders err on the command's stderr and returns an ExitError so
// Execute exits non-zero without printing it again.
func fail(cmd *cobra.Command, app *App, err error) error {
	id, styled := classifyError(err, app.verbose)
	renderServiceError(app.stderr, newServiceError(err, id, styled), true)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}
