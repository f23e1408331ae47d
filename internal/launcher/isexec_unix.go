//go:build !windows

package launcher

import "os"

// isExecutable reports whether info's mode carries any execute bit,
// mirroring the shell's own notion of "found but not executable" (exit
// 126) on POSIX.
func isExecutable(info os.FileInfo) bool {
	return info.Mode()&0111 != 0
}
