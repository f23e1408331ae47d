// Command cmdmox-shim is the universal launcher binary: every
// intercepted command resolves, via PATH redirection, to a symlink (or,
// on Windows, a forwarding batch file) pointing at this single compiled
// binary. It determines its own identity from argv[0] and delegates
// everything else to internal/launcher.
package main

import (
	"os"

	"github.com/cmdmox/cmdmox/internal/launcher"
)

func main() {
	code := launcher.Run(launcher.Config{}, os.Args, os.Stdin, os.Stdout, os.Stderr, os.Environ())
	os.Exit(code)
}
