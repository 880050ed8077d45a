// SPDX-License-Identifier: MPL-2.0

// Package issue turns build failures into messages a user can act on.
//
// ActionableError carries the failed operation, the file involved and short
// suggestions. It can link an entry of the issue catalog, a longer Markdown
// explanation rendered with glamour when the CLI reports the failure.
package issue
