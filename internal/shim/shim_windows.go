//go:build windows

package shim

import (
	"fmt"
	"os"
	"strings"
)

// entryName returns the command name with the ".cmd" extension.
func entryName(command string) string {
	return command + ".cmd"
}

// caseFoldKey folds case: Windows filesystems are case-insensitive.
func caseFoldKey(command string) string {
	return strings.ToLower(command)
}

// batchTemplate invokes the universal launcher with the inherited
// arguments. %* forwards all arguments verbatim; the launcher itself
// recovers the logical command name from its own argv[0] basename
// (stripped of ".cmd" by the launcher, not here), so the batch file need
// not pass the command name explicitly. CRLF line endings are used
// regardless of host per spec, and the launcher path is always quoted so
// spaces in the install path don't split it into multiple tokens.
const batchTemplate = "@echo off\r\n" +
	"\"%s\" %%*\r\n"

// createEntry writes a .cmd batch file at dir/<command>.cmd that invokes
// launcherPath, escaping "^" and "%%" so they survive cmd.exe's own
// expansion pass, and using CRLF endings unconditionally.
func createEntry(launcherPath, dir, command string) (string, error) {
	escaped := strings.ReplaceAll(launcherPath, "^", "^^")
	escaped = strings.ReplaceAll(escaped, "%", "%%")

	content := fmt.Sprintf(batchTemplate, escaped)
	path := dir + "\\" + entryName(command)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil { //nolint:gosec // entry must be readable/executable
		return "", fmt.Errorf("shim: write batch entry: %w", err)
	}
	return path, nil
}
