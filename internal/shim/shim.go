// Package shim creates the per-command launcher entries inside a
// controller's temp directory (Component B). On POSIX each entry is a
// symlink to the single universal launcher binary; on Windows each entry
// is a small batch file that forwards to the launcher.
//
// Grounded on the teacher's internal/platform.InterceptFactory
// (CreateIntercept/InterceptFileName), generalized from "delegate to the
// cli-replay binary" to "delegate to the universal cmdmox-shim binary".
package shim

import (
	"fmt"
	"os"
	"path/filepath"
)

// Generator creates and repairs launcher entries for registered commands.
type Generator struct {
	// LauncherPath is the absolute path to the compiled universal launcher
	// binary (cmd/cmdmox-shim).
	LauncherPath string
	// Dir is the environment's temp directory where entries are created.
	Dir string
}

// New returns a Generator for launcherPath writing entries into dir.
func New(launcherPath, dir string) *Generator {
	return &Generator{LauncherPath: launcherPath, Dir: dir}
}

// Generate creates (or repairs) the launcher entry for command. It is
// idempotent: calling it again for the same command overwrites a broken
// or missing entry and leaves a healthy one untouched in effect (the
// entry content is deterministic, so a rewrite is always a no-op
// functionally).
func (g *Generator) Generate(command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("shim: command must be non-empty")
	}
	if _, err := os.Stat(g.LauncherPath); err != nil {
		return "", fmt.Errorf("shim: launcher binary not found: %w", err)
	}
	if info, err := os.Stat(g.Dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("shim: entry directory does not exist: %s", g.Dir)
	}

	return createEntry(g.LauncherPath, g.Dir, command)
}

// GenerateAll generates entries for every command in commands, rejecting
// duplicate names that differ only by case (a host-filesystem conflict on
// case-insensitive systems, and always rejected for consistency across
// platforms per the spec).
func (g *Generator) GenerateAll(commands []string) error {
	seen := make(map[string]string, len(commands))
	for _, c := range commands {
		key := caseFoldKey(c)
		if prior, ok := seen[key]; ok && prior != c {
			return fmt.Errorf("shim: commands %q and %q conflict under case-insensitive resolution", prior, c)
		}
		seen[key] = c
	}
	for _, c := range commands {
		if _, err := g.Generate(c); err != nil {
			return err
		}
	}
	return nil
}

// EntryName returns the platform-appropriate filename for a launcher entry.
func EntryName(command string) string {
	return entryName(command)
}

// EntryPath returns the full path to the launcher entry for command inside
// dir.
func EntryPath(dir, command string) string {
	return filepath.Join(dir, EntryName(command))
}
