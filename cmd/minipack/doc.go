// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the minipack command line interface.
//
// The command tree is built by NewRootCommand around an App, the
// composition root holding the filesystem and output streams, so tests can
// drive commands against an in-memory project. Execute runs the tree with
// fang for styled help and error output.
package cmd
