// SPDX-License-Identifier: MPL-2.0

// Package testutil provides project fixtures for tests: in-memory and
// on-disk source trees (MemProject, DiskProject, WriteFiles) and file
// assertions (MustReadFile, MustNotExist).
package testutil
