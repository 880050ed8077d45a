// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// watchExhausted reports whether err means the watcher ran out of kernel
// resources. SetFiles returns such errors instead of skipping the directory,
// and Run stops with them, because later passes would silently miss changes.
// On Linux these are ENOSPC (fs.inotify.max_user_watches reached), EMFILE
// and ENFILE.
func watchExhausted(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
