//go:build windows

package environment

import "golang.org/x/sys/windows"

// shortPathName resolves the Windows short (8.3) filesystem alias for dir,
// used when the full path threatens the legacy MAX_PATH limit.
func shortPathName(dir string) (string, error) {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, 4096)
	n, err := windows.GetShortPathName(p, &buf[0], uint32(len(buf)))
	if err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:n]), nil
}
