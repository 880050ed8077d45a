// SPDX-License-Identifier: MPL-2.0

// minipack bundles CommonJS modules into self-contained scripts.
package main

import "github.com/minipack/minipack/cmd/minipack"

func main() {
	cmd.Execute()
}
