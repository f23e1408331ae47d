//go:build windows

package launcher

import "os"

// isExecutable reports true for any non-directory on Windows: there is
// no POSIX execute bit to check.
func isExecutable(info os.FileInfo) bool {
	return !info.IsDir()
}
