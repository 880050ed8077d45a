// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Esbuild compiles a module to CommonJS with esbuild. The syntax is chosen
// from the file extension: TypeScript, JSX, JSON, or plain JavaScript. ES
// module syntax is rewritten into require calls and exports assignments.
func Esbuild(_ context.Context, path, source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     loaderFor(path),
		Format:     api.FormatCommonJS,
		Target:     api.ES2015,
		Sourcefile: path,
	})
	if len(result.Errors) > 0 {
		errs := make([]error, len(result.Errors))
		for i, message := range result.Errors {
			errs[i] = formatMessage(message)
		}
		return "", errors.Join(errs...)
	}
	return string(result.Code), nil
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".json":
		return api.LoaderJSON
	default:
		return api.LoaderJS
	}
}

func formatMessage(message api.Message) error {
	if message.Location == nil {
		return fmt.Errorf("%s", message.Text)
	}
	return fmt.Errorf("%d:%d: %s", message.Location.Line, message.Location.Column, message.Text)
}
