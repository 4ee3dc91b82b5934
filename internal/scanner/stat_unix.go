//go:build unix

package scanner

import (
	"io/fs"
	"syscall"
)

// deviceOf extracts the device id from a FileInfo. The second return is
// false on platforms or filesystems that do not expose one.
func deviceOf(info fs.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}
