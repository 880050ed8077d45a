// SPDX-License-Identifier: MPL-2.0

// Package compiler drives minipack compile passes.
//
// A Compiler owns the configuration, the loader pipeline and the lifecycle
// hooks. Every call to Run performs a fresh, independent pass: a new module
// graph is built for the configured entries, grouped into one chunk per
// entry, rendered into assets and written to the output directory. Nothing
// is cached between passes. Watch repeats passes whenever a file the last
// pass touched changes.
//
// Hooks are plain ordered callback lists. Plugins register callbacks on them
// from Apply; BeforeRun fires before a pass starts and AfterDone after it
// ends, successful or not.
package compiler
