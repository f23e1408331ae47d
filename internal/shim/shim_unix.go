//go:build !windows

package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// entryName returns the command name unchanged (no extension on POSIX).
func entryName(command string) string {
	return command
}

// caseFoldKey returns the comparison key used to detect case-only
// duplicate command names. POSIX filesystems are typically
// case-sensitive, but macOS (HFS+/APFS default) is not, so we fold case
// unconditionally to stay safe across the whole POSIX family the spec
// targets.
func caseFoldKey(command string) string {
	return strings.ToLower(command)
}

// createEntry creates a symlink at dir/command pointing at launcherPath,
// replacing any existing (broken or stale) entry at that path.
func createEntry(launcherPath, dir, command string) (string, error) {
	linkPath := filepath.Join(dir, command)

	if _, err := os.Lstat(linkPath); err == nil {
		if err := os.Remove(linkPath); err != nil {
			return "", fmt.Errorf("shim: remove stale entry: %w", err)
		}
	}

	if err := os.Symlink(launcherPath, linkPath); err != nil {
		return "", fmt.Errorf("shim: create symlink: %w", err)
	}
	return linkPath, nil
}
